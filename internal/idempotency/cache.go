// Package idempotency deduplicates side-effecting requests by a client key,
// backed by redis so every serving instance sees the same records.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baharkarakas/paycore/internal/apperr"
)

const (
	DefaultTTL  = 300 * time.Second
	DefaultWait = 5 * time.Second
	maxKeyLen   = 255
	casRetries  = 5
)

var errCASExhausted = errors.New("idempotency record kept changing during completion")

// Outcome of Begin: either the caller owns the key and must run the handler
// (Fresh) or it must replay a response produced earlier.
type Outcome struct {
	Fresh  bool
	Replay *Response
}

type Cache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

// WithWait bounds how long Begin blocks on a pending record with the same
// fingerprint before reporting the request as still in progress.
func WithWait(d time.Duration) Option { return func(c *Cache) { c.wait = d } }

func WithPollInterval(d time.Duration) Option { return func(c *Cache) { c.poll = d } }

func New(rdb redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		rdb:    rdb,
		prefix: "idempotency:",
		ttl:    DefaultTTL,
		wait:   DefaultWait,
		poll:   50 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) redisKey(key string) string { return c.prefix + key }

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apperr.Validation("missing Idempotency-Key header")
	}
	if len(key) > maxKeyLen {
		return apperr.Validation("Idempotency-Key is too long")
	}
	return nil
}

// Begin claims key for a request with the given fingerprint. The pending
// record is created with SET NX before any handler runs, so of two concurrent
// identical requests exactly one gets Fresh; the other waits for the first to
// complete and replays its response.
func (c *Cache) Begin(ctx context.Context, key, fingerprint string) (Outcome, error) {
	if err := checkKey(key); err != nil {
		return Outcome{}, err
	}
	rk := c.redisKey(key)
	pending, err := json.Marshal(Record{Fingerprint: fingerprint, Status: StatusPending})
	if err != nil {
		return Outcome{}, apperr.Internal("encode idempotency record", err)
	}

	deadline := time.Now().Add(c.wait)
	for {
		created, err := c.rdb.SetNX(ctx, rk, pending, c.ttl).Result()
		if err != nil {
			return Outcome{}, apperr.Internal("idempotency store unavailable", err)
		}
		if created {
			return Outcome{Fresh: true}, nil
		}

		rec, found, err := c.get(ctx, rk)
		if err != nil {
			return Outcome{}, err
		}
		if !found {
			// expired between SETNX and GET; claim again
			continue
		}
		if rec.Fingerprint != fingerprint {
			return Outcome{}, apperr.Conflict("idempotency key already used for a different request")
		}
		if rec.Status == StatusCompleted && rec.Response != nil {
			return Outcome{Replay: rec.Response}, nil
		}

		if !time.Now().Before(deadline) {
			return Outcome{}, apperr.Conflict("a request with this idempotency key is still in progress")
		}
		t := time.NewTimer(c.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return Outcome{}, apperr.Internal("waiting for in-flight request", ctx.Err())
		case <-t.C:
		}
	}
}

// Complete stores resp under key with a refreshed TTL. The write is a
// WATCH/MULTI compare-and-swap that only succeeds while the stored record
// still carries this fingerprint.
func (c *Cache) Complete(ctx context.Context, key, fingerprint string, resp Response) error {
	if err := checkKey(key); err != nil {
		return err
	}
	rk := c.redisKey(key)
	done, err := json.Marshal(Record{Fingerprint: fingerprint, Status: StatusCompleted, Response: &resp})
	if err != nil {
		return apperr.Internal("encode idempotency record", err)
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, rk).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// TTL ran out while the handler was working; store the result anyway.
		case err != nil:
			return err
		default:
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			if rec.Fingerprint != fingerprint {
				return apperr.Conflict("idempotency key was claimed by a different request")
			}
			if rec.Status == StatusCompleted {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, done, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := c.rdb.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				return err
			}
			return apperr.Internal("complete idempotency record", err)
		}
		return nil
	}
	return apperr.Internal("complete idempotency record", errCASExhausted)
}

// Lookup returns the stored record for key, if any.
func (c *Cache) Lookup(ctx context.Context, key string) (Record, bool, error) {
	return c.get(ctx, c.redisKey(key))
}

func (c *Cache) get(ctx context.Context, rk string) (Record, bool, error) {
	raw, err := c.rdb.Get(ctx, rk).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, apperr.Internal("idempotency store unavailable", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, apperr.Internal("decode idempotency record", err)
	}
	return rec, true, nil
}
