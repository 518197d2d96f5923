package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/paycore/internal/gateway"
	"github.com/baharkarakas/paycore/internal/logger"
	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
	"github.com/baharkarakas/paycore/internal/repository/memory"
	"github.com/baharkarakas/paycore/internal/webhook"
	"github.com/baharkarakas/paycore/internal/worker"
)

const (
	testSecret = "whsec_test"
	visaPAN    = "4111111111111111"
)

type fixture struct {
	repos       repo.Repositories
	gw          gateway.Processor
	txns        *TransactionService
	settlements *SettlementService
	verifier    *webhook.Verifier
	merchant    models.Merchant
}

func newFixture(t *testing.T, gw gateway.Processor) *fixture {
	t.Helper()
	if gw == nil {
		gw = gateway.NewSimulator(decimal.NewFromInt(1_000_000))
	}
	repos := memory.NewRepositories()
	v, err := webhook.NewVerifier(testSecret)
	require.NoError(t, err)
	pool := worker.NewPool(4, 16)
	t.Cleanup(pool.Stop)

	log := logger.Discard()
	txns := NewTransactionService(repos, gw, "NGN", log)
	f := &fixture{
		repos:       repos,
		gw:          gw,
		txns:        txns,
		settlements: NewSettlementService(repos, v, txns, pool, log),
		verifier:    v,
	}
	f.merchant, err = repos.Merchants.Create(context.Background(), models.Merchant{
		Name: "Ade Stores", Email: "ade@example.com", SettlementCurrency: "NGN", APIKeyHash: "x",
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) message(amount string) string {
	return "0200|" + visaPAN + "|" + amount + "|" + f.merchant.ID
}

func (f *fixture) authorizedTxn(t *testing.T, amount string) models.Transaction {
	t.Helper()
	ctx := context.Background()
	tx, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message(amount)})
	require.NoError(t, err)
	tx, err = f.txns.Authorize(ctx, f.merchant.ID, tx.ID, AuthorizeRequest{EMVData: "9F2608A1B2C3D4E5F607"})
	require.NoError(t, err)
	return tx
}

// signed builds a webhook body for fields, stamped now and signed.
func (f *fixture) signed(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	payload := map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range fields {
		payload[k] = v
	}
	sig, err := f.verifier.Sign(payload)
	require.NoError(t, err)
	payload["signature"] = sig
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

type fakeProcessor struct {
	authorizeCalls atomic.Int32
	voidCalls      atomic.Int32
	approve        bool
	capture        bool
	delay          time.Duration
	onAuthorize    func()
}

func (p *fakeProcessor) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (gateway.AuthorizeResult, error) {
	p.authorizeCalls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.onAuthorize != nil {
		p.onAuthorize()
	}
	if !p.approve {
		return gateway.AuthorizeResult{Status: gateway.Declined, ResponseCode: "05"}, nil
	}
	return gateway.AuthorizeResult{
		Status: gateway.Approved, AuthCode: "A12345", ProcessorTxnID: "ptxn_ABCDEF012345",
		Network: gateway.NetworkForCard(req.CardMasked), ResponseCode: "00",
	}, nil
}

func (p *fakeProcessor) Capture(ctx context.Context, ref string, amount decimal.Decimal) (gateway.CaptureResult, error) {
	if !p.capture {
		return gateway.CaptureResult{Status: gateway.CaptureDeclined, ResponseCode: "25"}, nil
	}
	return gateway.CaptureResult{Status: gateway.Captured, CaptureID: "cap_1", ResponseCode: "00"}, nil
}

func (p *fakeProcessor) Void(ctx context.Context, ref string) error {
	p.voidCalls.Add(1)
	return nil
}
