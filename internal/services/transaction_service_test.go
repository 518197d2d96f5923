package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/gateway"
	"github.com/baharkarakas/paycore/internal/logger"
	"github.com/baharkarakas/paycore/internal/models"
)

func TestInitiate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tx, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message("1500.50")})
	require.NoError(t, err)
	require.Equal(t, models.TxnInitiated, tx.Status)
	require.Equal(t, "NGN", tx.Currency)
	require.Equal(t, "411111******1111", tx.CardMasked)
	require.Equal(t, "1500.5", tx.Amount.String())
	require.Nil(t, tx.AuthCode)
}

func TestInitiate_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := map[string]struct {
		msg  string
		kind apperr.Kind
	}{
		"three fields":     {"0200|4111111111111111|10", apperr.KindValidation},
		"bad luhn":         {"0200|4111111111111112|10|" + f.merchant.ID, apperr.KindValidation},
		"zero amount":      {"0200|4111111111111111|0|" + f.merchant.ID, apperr.KindValidation},
		"short mti":        {"200|4111111111111111|10|" + f.merchant.ID, apperr.KindValidation},
		"unknown merchant": {"0200|4111111111111111|10|no-such-merchant", apperr.KindNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: tc.msg})
			require.Equal(t, tc.kind, apperr.KindOf(err), "%v", err)
		})
	}
}

func TestInitiate_OtherMerchantHidden(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.txns.Initiate(context.Background(), "another-merchant", InitiateRequest{Message: f.message("10")})
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t, nil)
	tx := f.authorizedTxn(t, "250")

	require.Equal(t, models.TxnAuthorized, tx.Status)
	require.NotNil(t, tx.AuthCode)
	require.NotNil(t, tx.ProcessorRef)
	require.Equal(t, "VISA", *tx.Network)

	_, err := f.txns.Authorize(context.Background(), f.merchant.ID, tx.ID, AuthorizeRequest{EMVData: "9F26"})
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAuthorize_DeclinedLeavesTransactionUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message("10")})
	require.NoError(t, err)

	_, err = f.txns.Authorize(ctx, f.merchant.ID, tx.ID, AuthorizeRequest{EMVData: ""})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := f.txns.Get(ctx, f.merchant.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxnInitiated, got.Status)
	require.Nil(t, got.AuthCode)
}

func TestAuthorize_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.txns.Authorize(context.Background(), f.merchant.ID, "missing", AuthorizeRequest{EMVData: "x"})
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAuthorize_ConcurrentSingleWinner(t *testing.T) {
	gw := &fakeProcessor{approve: true, capture: true, delay: 20 * time.Millisecond}
	f := newFixture(t, gw)
	ctx := context.Background()
	tx, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message("10")})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, clash int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.txns.Authorize(ctx, f.merchant.ID, tx.ID, AuthorizeRequest{EMVData: "9F26"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.Is(err, apperr.KindConflict) {
				clash++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, ok)
	require.Equal(t, 1, clash)
	// every approval that lost the race is reversed
	require.Equal(t, gw.authorizeCalls.Load()-1, gw.voidCalls.Load())
}

func TestAuthorize_LostRaceVoidsApproval(t *testing.T) {
	gw := &fakeProcessor{approve: true}
	f := newFixture(t, gw)
	ctx := context.Background()
	tx, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message("10")})
	require.NoError(t, err)

	// the transaction fails while the processor is still deciding
	gw.onAuthorize = func() {
		_, err := f.txns.Fail(ctx, f.merchant.ID, tx.ID, "cancelled")
		require.NoError(t, err)
	}
	_, err = f.txns.Authorize(ctx, f.merchant.ID, tx.ID, AuthorizeRequest{EMVData: "9F26"})
	require.True(t, apperr.Is(err, apperr.KindConflict))
	require.EqualValues(t, 1, gw.voidCalls.Load())

	got, err := f.txns.Get(ctx, f.merchant.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxnFailed, got.Status)
	require.Nil(t, got.ProcessorRef)
}

func TestAuthorize_WinnerIsNotVoided(t *testing.T) {
	gw := &fakeProcessor{approve: true, capture: true}
	f := newFixture(t, gw)
	f.authorizedTxn(t, "10")
	require.Zero(t, gw.voidCalls.Load())
}

func TestSettle_OnAnotherInstance(t *testing.T) {
	f := newFixture(t, nil)
	tx := f.authorizedTxn(t, "75.50")

	// a second process shares the store but not the processor state
	other := NewTransactionService(f.repos, gateway.NewSimulator(decimal.NewFromInt(1_000_000)), "NGN", logger.Discard())
	settled, outcome, err := other.Settle(context.Background(), f.merchant.ID, tx.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, outcome)
	require.Equal(t, models.TxnSettled, settled.Status)
}

func TestSettle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.authorizedTxn(t, "99.99")
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	settled, outcome, err := f.txns.Settle(ctx, f.merchant.ID, tx.ID, at)
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, outcome)
	require.Equal(t, models.TxnSettled, settled.Status)
	require.True(t, settled.SettledAt.Equal(at))

	again, outcome, err := f.txns.Settle(ctx, f.merchant.ID, tx.ID, at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadySettled, outcome)
	require.True(t, again.SettledAt.Equal(at))
}

func TestSettle_CaptureDeclinedFailsTransaction(t *testing.T) {
	f := newFixture(t, &fakeProcessor{approve: true, capture: false})
	tx := f.authorizedTxn(t, "10")

	failed, outcome, err := f.txns.Settle(context.Background(), f.merchant.ID, tx.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, OutcomeCaptureFailed, outcome)
	require.Equal(t, models.TxnFailed, failed.Status)
	require.Contains(t, *failed.FailureReason, "capture declined")
}

func TestSettle_RequiresAuthorized(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message("10")})
	require.NoError(t, err)

	_, _, err = f.txns.Settle(ctx, f.merchant.ID, tx.ID, time.Now())
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestFail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.authorizedTxn(t, "10")

	failed, err := f.txns.Fail(ctx, f.merchant.ID, tx.ID, "customer dispute")
	require.NoError(t, err)
	require.Equal(t, models.TxnFailed, failed.Status)

	_, err = f.txns.Fail(ctx, f.merchant.ID, tx.ID, "again")
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestList_FiltersByMerchantAndStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.authorizedTxn(t, "10")
	_, err := f.txns.Initiate(ctx, f.merchant.ID, InitiateRequest{Message: f.message("20")})
	require.NoError(t, err)

	all, err := f.txns.List(ctx, models.TransactionFilter{MerchantID: f.merchant.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)

	auth, err := f.txns.List(ctx, models.TransactionFilter{MerchantID: f.merchant.ID, Status: models.TxnAuthorized})
	require.NoError(t, err)
	require.Len(t, auth, 1)

	_, err = f.txns.List(ctx, models.TransactionFilter{Status: "bogus"})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}
