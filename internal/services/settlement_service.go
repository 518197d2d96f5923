package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/paycore/internal/api/validate"
	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/metrics"
	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
	"github.com/baharkarakas/paycore/internal/webhook"
	"github.com/baharkarakas/paycore/internal/worker"
)

type SettlementService struct {
	settlements repo.Settlements
	merchants   repo.Merchants
	audit       repo.AuditLogs
	verifier    *webhook.Verifier
	txns        *TransactionService
	pool        *worker.Pool
	log         *slog.Logger
	now         func() time.Time
}

func NewSettlementService(r repo.Repositories, v *webhook.Verifier, txns *TransactionService, pool *worker.Pool, log *slog.Logger) *SettlementService {
	return &SettlementService{
		settlements: r.Settlements,
		merchants:   r.Merchants,
		audit:       r.AuditLogs,
		verifier:    v,
		txns:        txns,
		pool:        pool,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ItemResult is the outcome of settling one transaction listed in a
// processing event.
type ItemResult struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

type WebhookResult struct {
	SettlementID  string       `json:"settlementId"`
	Status        string       `json:"status"`
	Replayed      bool         `json:"replayed,omitempty"`
	FailureReason *string      `json:"failureReason,omitempty"`
	Transactions  []ItemResult `json:"transactions,omitempty"`
}

// HandleWebhook authenticates a raw settlement callback and applies it.
// Redelivery of an event the settlement already reflects succeeds without
// writing anything.
func (s *SettlementService) HandleWebhook(ctx context.Context, body []byte) (WebhookResult, error) {
	if _, ok := s.verifier.VerifyJSON(body); !ok {
		metrics.WebhookRejected.WithLabelValues("signature").Inc()
		s.log.Warn("webhook.invalid_signature")
		return WebhookResult{}, apperr.Authenticity("invalid webhook signature")
	}

	var ev models.SettlementEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.WebhookRejected.WithLabelValues("invalid").Inc()
		return WebhookResult{}, apperr.Validation("invalid webhook payload")
	}
	if err := validate.SettlementEvent(ev); err != nil {
		metrics.WebhookRejected.WithLabelValues("invalid").Inc()
		return WebhookResult{}, apperr.ValidationDetails("invalid webhook payload", err)
	}
	switch ev.Status {
	case models.EventInitiated, models.EventProcessing, models.EventCompleted, models.EventFailed:
	default:
		metrics.SettlementEvents.WithLabelValues("unknown", "rejected").Inc()
		return WebhookResult{}, apperr.Validation("invalid settlement status")
	}

	if _, err := s.merchants.GetByID(ctx, ev.MerchantID); err != nil {
		s.log.Warn("webhook.merchant_not_found", "settlement_id", ev.SettlementID, "merchant_id", ev.MerchantID)
		return WebhookResult{}, storeErr("get merchant", err, "merchant not found")
	}

	var (
		res WebhookResult
		err error
	)
	switch ev.Status {
	case models.EventInitiated:
		res, err = s.initiated(ctx, ev)
	case models.EventProcessing:
		res, err = s.processing(ctx, ev)
	case models.EventCompleted:
		at := s.now()
		if ev.CompletedAt != nil {
			at = ev.CompletedAt.UTC()
		}
		res, err = s.finish(ctx, ev, models.SettlementUpdate{Status: models.SettlementCompleted, CompletedAt: &at})
	case models.EventFailed:
		at := s.now()
		if ev.FailedAt != nil {
			at = ev.FailedAt.UTC()
		}
		res, err = s.finish(ctx, ev, models.SettlementUpdate{Status: models.SettlementFailed, FailureReason: ev.FailureReason, FailedAt: &at})
	}
	if err != nil {
		metrics.SettlementEvents.WithLabelValues(ev.Status, "rejected").Inc()
		return WebhookResult{}, err
	}
	outcome := "applied"
	if res.Replayed {
		outcome = "replayed"
	}
	metrics.SettlementEvents.WithLabelValues(ev.Status, outcome).Inc()
	s.log.Info("settlement."+ev.Status, "settlement_id", ev.SettlementID, "merchant_id", ev.MerchantID, "replayed", res.Replayed)
	return res, nil
}

func (s *SettlementService) initiated(ctx context.Context, ev models.SettlementEvent) (WebhookResult, error) {
	date, _ := models.ParseSettlementDate(ev.SettlementDate)
	stored, created, err := s.settlements.Create(ctx, models.Settlement{
		ID:             ev.SettlementID,
		MerchantID:     ev.MerchantID,
		TotalAmount:    *ev.TotalAmount,
		SettlementDate: date,
		Reference:      ev.Reference,
		Status:         models.SettlementPending,
		TransactionIDs: ev.TransactionIDs,
	})
	if err != nil {
		return WebhookResult{}, storeErr("create settlement", err, "settlement not found")
	}
	if stored.MerchantID != ev.MerchantID {
		return WebhookResult{}, apperr.NotFound("settlement not found")
	}
	if created {
		s.auditSettlement(ctx, stored, "initiated", map[string]any{"total_amount": stored.TotalAmount.String()})
	}
	return WebhookResult{SettlementID: stored.ID, Status: models.EventInitiated, Replayed: !created}, nil
}

// load fetches the settlement named by ev, hidden from other merchants.
func (s *SettlementService) load(ctx context.Context, ev models.SettlementEvent) (models.Settlement, error) {
	d, err := s.settlements.GetByID(ctx, ev.SettlementID)
	if err != nil {
		return models.Settlement{}, storeErr("get settlement", err, "settlement not found")
	}
	if d.MerchantID != ev.MerchantID {
		return models.Settlement{}, apperr.NotFound("settlement not found")
	}
	return d.Settlement, nil
}

func (s *SettlementService) transition(ctx context.Context, cur models.Settlement, upd models.SettlementUpdate) (models.Settlement, error) {
	if !cur.Status.CanTransitionTo(upd.Status) {
		return models.Settlement{}, apperr.Conflict(fmt.Sprintf("cannot move settlement from %s to %s", cur.Status, upd.Status))
	}
	out, err := s.settlements.Update(ctx, cur.ID, cur.Status, upd)
	if err != nil {
		return models.Settlement{}, storeErr("update settlement", err, "settlement not found")
	}
	return out, nil
}

func (s *SettlementService) processing(ctx context.Context, ev models.SettlementEvent) (WebhookResult, error) {
	cur, err := s.load(ctx, ev)
	if err != nil {
		return WebhookResult{}, err
	}
	updated, err := s.transition(ctx, cur, models.SettlementUpdate{
		Status:         models.SettlementProcessing,
		TransactionIDs: ev.TransactionIDs,
	})
	if err != nil {
		return WebhookResult{}, err
	}
	s.auditSettlement(ctx, updated, "processing", map[string]any{"transaction_ids": updated.TransactionIDs})

	at := s.now()
	items := worker.Run(ctx, s.pool, updated.TransactionIDs, func(ctx context.Context, id string) (SettleOutcome, error) {
		_, outcome, err := s.txns.Settle(ctx, updated.MerchantID, id, at)
		return outcome, err
	})

	res := WebhookResult{SettlementID: updated.ID, Status: models.EventProcessing, Transactions: make([]ItemResult, 0, len(items))}
	for _, it := range items {
		item := ItemResult{TransactionID: it.Key, Status: string(it.Value)}
		if it.Err != nil {
			item.Status = "error"
			item.Error, _ = apperr.Public(it.Err)
			s.log.Warn("settlement.transaction_not_settled", "settlement_id", updated.ID, "transaction_id", it.Key, "err", it.Err)
		}
		res.Transactions = append(res.Transactions, item)
	}
	return res, nil
}

// finish applies a terminal event. A settlement already in that state is
// left untouched.
func (s *SettlementService) finish(ctx context.Context, ev models.SettlementEvent, upd models.SettlementUpdate) (WebhookResult, error) {
	cur, err := s.load(ctx, ev)
	if err != nil {
		return WebhookResult{}, err
	}
	if cur.Status == upd.Status {
		return WebhookResult{SettlementID: cur.ID, Status: string(cur.Status), Replayed: true, FailureReason: cur.FailureReason}, nil
	}
	updated, err := s.transition(ctx, cur, upd)
	if err != nil {
		return WebhookResult{}, err
	}
	details := map[string]any{}
	if updated.FailureReason != nil {
		details["failure_reason"] = *updated.FailureReason
	}
	s.auditSettlement(ctx, updated, string(updated.Status), details)
	return WebhookResult{SettlementID: updated.ID, Status: string(updated.Status), FailureReason: updated.FailureReason}, nil
}

func (s *SettlementService) auditSettlement(ctx context.Context, st models.Settlement, action string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["status"] = st.Status
	if err := s.audit.Create(ctx, models.AuditLog{
		EntityType: "settlement",
		EntityID:   st.ID,
		Action:     action,
		Details:    details,
	}); err != nil {
		s.log.Warn("audit log write failed", "settlement_id", st.ID, "action", action, "err", err)
	}
}

// ----------------- QUERIES -----------------

// Get returns a settlement owned by merchantID.
func (s *SettlementService) Get(ctx context.Context, merchantID, id string) (models.SettlementDetail, error) {
	d, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		return models.SettlementDetail{}, storeErr("get settlement", err, "settlement not found")
	}
	if merchantID != "" && d.MerchantID != merchantID {
		return models.SettlementDetail{}, apperr.NotFound("settlement not found")
	}
	return d, nil
}

func (s *SettlementService) ListByMerchant(ctx context.Context, merchantID string, f models.SettlementFilter) ([]models.SettlementDetail, error) {
	if _, err := s.merchants.GetByID(ctx, merchantID); err != nil {
		return nil, storeErr("get merchant", err, "merchant not found")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid settlement status filter")
	}
	out, err := s.settlements.ListByMerchant(ctx, merchantID, f.Normalize())
	if err != nil {
		return nil, apperr.Internal("list settlements", err)
	}
	if out == nil {
		out = []models.SettlementDetail{}
	}
	return out, nil
}
