package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/baharkarakas/paycore/internal/api/validate"
	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/gateway"
	"github.com/baharkarakas/paycore/internal/metrics"
	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

const maxEMVLen = 999

type TransactionService struct {
	trx       repo.Transactions
	merchants repo.Merchants
	audit     repo.AuditLogs
	gw        gateway.Processor
	currency  string
	log       *slog.Logger
	now       func() time.Time
}

func NewTransactionService(r repo.Repositories, gw gateway.Processor, defaultCurrency string, log *slog.Logger) *TransactionService {
	return &TransactionService{
		trx:       r.Transactions,
		merchants: r.Merchants,
		audit:     r.AuditLogs,
		gw:        gw,
		currency:  defaultCurrency,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ----------------- Helpers -----------------

func (s *TransactionService) record(ctx context.Context, tx models.Transaction, action string, details map[string]any) {
	metrics.TransactionsTotal.WithLabelValues(string(tx.Status)).Inc()
	if tx.Status == models.TxnFailed {
		metrics.TransactionsFailed.Inc()
	}
	if details == nil {
		details = map[string]any{}
	}
	details["status"] = tx.Status
	if err := s.audit.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   tx.ID,
		Action:     action,
		Details:    details,
	}); err != nil {
		s.log.Warn("audit log write failed", "transaction_id", tx.ID, "action", action, "err", err)
	}
	s.log.Info("transaction."+action, "transaction_id", tx.ID, "merchant_id", tx.MerchantID, "status", tx.Status)
}

// owned loads a transaction and hides it from other merchants.
func (s *TransactionService) owned(ctx context.Context, merchantID, id string) (models.Transaction, error) {
	tx, err := s.trx.GetByID(ctx, id)
	if err != nil {
		return models.Transaction{}, storeErr("get transaction", err, "transaction not found")
	}
	if merchantID != "" && tx.MerchantID != merchantID {
		return models.Transaction{}, apperr.NotFound("transaction not found")
	}
	return tx, nil
}

// transition moves tx from its current status to upd.Status with a
// conditional write.
func (s *TransactionService) transition(ctx context.Context, tx models.Transaction, upd models.TransactionUpdate) (models.Transaction, error) {
	if !tx.Status.CanTransitionTo(upd.Status) {
		return models.Transaction{}, apperr.Conflict(fmt.Sprintf("cannot move transaction from %s to %s", tx.Status, upd.Status))
	}
	out, err := s.trx.Update(ctx, tx.ID, tx.Status, upd)
	if err != nil {
		return models.Transaction{}, storeErr("update transaction", err, "transaction not found")
	}
	return out, nil
}

// ----------------- INITIATE -----------------

type InitiateRequest struct {
	Message  string `json:"iso_message"`
	Currency string `json:"currency"`
}

// Initiate parses a terminal message and records an initiated transaction for
// the calling merchant.
func (s *TransactionService) Initiate(ctx context.Context, merchantID string, req InitiateRequest) (models.Transaction, error) {
	msg, err := validate.ParseMessage(req.Message)
	if err != nil {
		return models.Transaction{}, apperr.Validation("invalid ISO message format")
	}
	if err := msg.Validate(); err != nil {
		return models.Transaction{}, apperr.ValidationDetails("invalid ISO message format", err)
	}

	m, err := s.merchants.GetByID(ctx, msg.MerchantID)
	if err != nil {
		return models.Transaction{}, storeErr("get merchant", err, "merchant not found")
	}
	if merchantID != "" && m.ID != merchantID {
		return models.Transaction{}, apperr.NotFound("merchant not found")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return models.Transaction{}, apperr.Validation("currency must be a 3-letter code")
	}

	tx, err := s.trx.Create(ctx, models.Transaction{
		MerchantID: m.ID,
		MTI:        msg.MTI,
		Amount:     msg.Amount,
		Currency:   currency,
		CardMasked: validate.MaskPAN(msg.CardNumber),
		Status:     models.TxnInitiated,
	})
	if err != nil {
		return models.Transaction{}, storeErr("create transaction", err, "transaction not found")
	}
	s.record(ctx, tx, "initiated", map[string]any{"amount": tx.Amount.String(), "currency": tx.Currency})
	return tx, nil
}

// ----------------- AUTHORIZE -----------------

type AuthorizeRequest struct {
	EMVData        string `json:"emv_data"`
	IdempotencyKey string `json:"-"`
}

func (s *TransactionService) Authorize(ctx context.Context, merchantID, id string, req AuthorizeRequest) (models.Transaction, error) {
	tx, err := s.owned(ctx, merchantID, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Status != models.TxnInitiated {
		return models.Transaction{}, apperr.Conflict("cannot authorize in current state")
	}
	if len(req.EMVData) > maxEMVLen || !printableASCII(req.EMVData) {
		return models.Transaction{}, apperr.Validation("emv_data must be printable ASCII of at most 999 characters")
	}

	res, err := s.gw.Authorize(ctx, gateway.AuthorizeRequest{
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		CardMasked:     tx.CardMasked,
		EMVPayload:     req.EMVData,
		MerchantRef:    tx.MerchantID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrAmountOutOfRange) || errors.Is(err, gateway.ErrPayloadTooLarge) {
			return models.Transaction{}, apperr.Validation(err.Error())
		}
		return models.Transaction{}, apperr.Internal("processor authorize", err)
	}
	if !res.Approved() {
		metrics.AuthorizationsDeclined.Inc()
		s.log.Info("transaction.declined", "transaction_id", tx.ID, "response_code", res.ResponseCode)
		return models.Transaction{}, apperr.ValidationDetails("authorization failed",
			map[string]string{"response_code": res.ResponseCode})
	}

	upd := models.TransactionUpdate{
		Status:       models.TxnAuthorized,
		AuthCode:     &res.AuthCode,
		ProcessorRef: &res.ProcessorTxnID,
		Network:      &res.Network,
	}
	out, err := s.transition(ctx, tx, upd)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			// approved, but another request moved the transaction first
			s.voidOrphan(ctx, tx.ID, res.ProcessorTxnID)
			return models.Transaction{}, apperr.Conflict("cannot authorize in current state")
		}
		return models.Transaction{}, err
	}
	s.record(ctx, out, "authorized", map[string]any{"processor_ref": res.ProcessorTxnID, "network": res.Network})
	return out, nil
}

func (s *TransactionService) voidOrphan(ctx context.Context, txnID, processorRef string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.gw.Void(ctx, processorRef); err != nil {
		s.log.Error("void orphaned authorization", "transaction_id", txnID, "processor_ref", processorRef, "err", err)
		return
	}
	s.log.Warn("transaction.auth_voided", "transaction_id", txnID, "processor_ref", processorRef)
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// ----------------- SETTLE / FAIL -----------------

type SettleOutcome string

const (
	OutcomeSettled        SettleOutcome = "settled"
	OutcomeAlreadySettled SettleOutcome = "already_settled"
	OutcomeCaptureFailed  SettleOutcome = "capture_failed"
)

// Settle moves an authorized transaction to settled, capturing it with the
// processor first when it carries a processor reference. Settling an already
// settled transaction is a no-op.
func (s *TransactionService) Settle(ctx context.Context, merchantID, id string, at time.Time) (models.Transaction, SettleOutcome, error) {
	tx, err := s.owned(ctx, merchantID, id)
	if err != nil {
		return models.Transaction{}, "", err
	}
	if tx.Status == models.TxnSettled {
		return tx, OutcomeAlreadySettled, nil
	}
	if tx.Status != models.TxnAuthorized {
		return models.Transaction{}, "", apperr.Conflict(fmt.Sprintf("cannot settle transaction in status %s", tx.Status))
	}

	if tx.ProcessorRef != nil && *tx.ProcessorRef != "" {
		res, err := s.gw.Capture(ctx, *tx.ProcessorRef, tx.Amount)
		if err != nil {
			return models.Transaction{}, "", apperr.Internal("processor capture", err)
		}
		if !res.Captured() {
			reason := "capture declined: " + res.ResponseCode
			failed, err := s.transition(ctx, tx, models.TransactionUpdate{Status: models.TxnFailed, FailureReason: &reason})
			if err != nil {
				return models.Transaction{}, "", err
			}
			s.record(ctx, failed, "capture_failed", map[string]any{"reason": reason})
			return failed, OutcomeCaptureFailed, nil
		}
	}

	at = at.UTC()
	out, err := s.transition(ctx, tx, models.TransactionUpdate{Status: models.TxnSettled, SettledAt: &at})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			if cur, getErr := s.trx.GetByID(ctx, id); getErr == nil && cur.Status == models.TxnSettled {
				return cur, OutcomeAlreadySettled, nil
			}
		}
		return models.Transaction{}, "", err
	}
	s.record(ctx, out, "settled", nil)
	return out, OutcomeSettled, nil
}

// Fail marks an initiated or authorized transaction failed.
func (s *TransactionService) Fail(ctx context.Context, merchantID, id, reason string) (models.Transaction, error) {
	tx, err := s.owned(ctx, merchantID, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return models.Transaction{}, apperr.Validation("failure reason is required")
	}
	out, err := s.transition(ctx, tx, models.TransactionUpdate{Status: models.TxnFailed, FailureReason: &reason})
	if err != nil {
		return models.Transaction{}, err
	}
	s.record(ctx, out, "failed", map[string]any{"reason": reason})
	return out, nil
}

// ----------------- QUERIES -----------------

func (s *TransactionService) Get(ctx context.Context, merchantID, id string) (models.Transaction, error) {
	return s.owned(ctx, merchantID, id)
}

func (s *TransactionService) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid transaction status filter")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.trx.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list transactions", err)
	}
	if out == nil {
		out = []models.Transaction{}
	}
	return out, nil
}
