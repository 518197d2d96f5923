package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/paycore/internal/apperr"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return New(rdb, opts...), mr
}

func TestBegin_FreshThenReplay(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	fp := Fingerprint("POST", "/api/v1/transactions", []byte(`{"amount":"10.00"}`))

	out, err := c.Begin(ctx, "k1", fp)
	require.NoError(t, err)
	require.True(t, out.Fresh)

	resp := Response{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"id":"t1"}`)}
	require.NoError(t, c.Complete(ctx, "k1", fp, resp))

	out, err = c.Begin(ctx, "k1", fp)
	require.NoError(t, err)
	require.False(t, out.Fresh)
	require.NotNil(t, out.Replay)
	require.Equal(t, 201, out.Replay.StatusCode)
	require.JSONEq(t, `{"id":"t1"}`, string(out.Replay.Body))
}

func TestBegin_DifferentFingerprintConflicts(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Begin(ctx, "k1", "fp-a")
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, "k1", "fp-a", Response{StatusCode: 200, Body: []byte(`{}`)}))

	_, err = c.Begin(ctx, "k1", "fp-b")
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestBegin_MissingKey(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Begin(context.Background(), "  ", "fp")
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestBegin_PendingTimesOut(t *testing.T) {
	c, _ := newTestCache(t, WithWait(30*time.Millisecond))
	ctx := context.Background()

	_, err := c.Begin(ctx, "k1", "fp")
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Begin(ctx, "k1", "fp")
	require.True(t, apperr.Is(err, apperr.KindConflict))
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBegin_WaitsForInFlightCompletion(t *testing.T) {
	c, _ := newTestCache(t, WithWait(2*time.Second))
	ctx := context.Background()

	out, err := c.Begin(ctx, "k1", "fp")
	require.NoError(t, err)
	require.True(t, out.Fresh)

	go func() {
		time.Sleep(40 * time.Millisecond)
		_ = c.Complete(ctx, "k1", "fp", Response{StatusCode: 201, Body: []byte(`{"id":"t1"}`)})
	}()

	out, err = c.Begin(ctx, "k1", "fp")
	require.NoError(t, err)
	require.False(t, out.Fresh)
	require.Equal(t, 201, out.Replay.StatusCode)
}

func TestBegin_ConcurrentExactlyOneFresh(t *testing.T) {
	c, _ := newTestCache(t, WithWait(2*time.Second))
	ctx := context.Background()

	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Begin(ctx, "k1", "fp")
			if err != nil {
				return
			}
			if out.Fresh {
				mu.Lock()
				fresh++
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				_ = c.Complete(ctx, "k1", "fp", Response{StatusCode: 201, Body: []byte(`{}`)})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, fresh)
}

func TestRecordExpires(t *testing.T) {
	c, mr := newTestCache(t, WithTTL(300*time.Second))
	ctx := context.Background()

	_, err := c.Begin(ctx, "k1", "fp-a")
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, "k1", "fp-a", Response{StatusCode: 200, Body: []byte(`{}`)}))

	mr.FastForward(301 * time.Second)

	out, err := c.Begin(ctx, "k1", "fp-b")
	require.NoError(t, err)
	require.True(t, out.Fresh)
}

func TestComplete_RejectsForeignFingerprint(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Begin(ctx, "k1", "fp-a")
	require.NoError(t, err)

	err = c.Complete(ctx, "k1", "fp-b", Response{StatusCode: 200})
	require.True(t, apperr.Is(err, apperr.KindConflict))

	rec, found, err := c.Lookup(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, StatusPending, rec.Status)
}

func TestFingerprint_IgnoresKeyOrderAndWhitespace(t *testing.T) {
	a := Fingerprint("post", "/x", []byte(`{"a":1,"b":"2"}`))
	b := Fingerprint("POST", "/x", []byte("{ \"b\": \"2\",\n \"a\": 1 }"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, Fingerprint("POST", "/y", []byte(`{"a":1,"b":"2"}`)))
	require.NotEqual(t, a, Fingerprint("POST", "/x", []byte(`{"a":1,"b":"3"}`)))
}
