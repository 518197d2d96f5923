package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/paycore/internal/api/httpx"
	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/idempotency"
	"github.com/baharkarakas/paycore/internal/metrics"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency requires an Idempotency-Key header on the wrapped routes. Keys
// are scoped to the authenticated merchant. The first request for a key runs
// the handler; a repeat with the same method, path and body replays the stored
// response, a repeat with a different request gets 409. 5xx responses are not
// stored, so the key stays claimed until its TTL runs out.
func Idempotency(cache *idempotency.Cache, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodyBytes))
			if err != nil {
				httpx.WriteAppError(w, r, log, apperr.Validation("unreadable request body"))
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			merchantID, _ := MerchantID(r.Context())
			rawKey := r.Header.Get(IdempotencyKeyHeader)
			key := rawKey
			if rawKey != "" {
				key = merchantID + ":" + rawKey
			}
			fp := idempotency.Fingerprint(r.Method, r.URL.Path, body)

			out, err := cache.Begin(r.Context(), key, fp)
			if err != nil {
				if apperr.Is(err, apperr.KindConflict) {
					metrics.IdempotencyOutcomes.WithLabelValues("conflict").Inc()
				}
				httpx.WriteAppError(w, r, log, err)
				return
			}
			if out.Replay != nil {
				metrics.IdempotencyOutcomes.WithLabelValues("replay").Inc()
				writeReplay(w, *out.Replay)
				return
			}
			metrics.IdempotencyOutcomes.WithLabelValues("fresh").Inc()

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			if cw.status == 0 {
				cw.status = http.StatusOK
			}
			if cw.status >= http.StatusInternalServerError {
				log.WarnContext(r.Context(), "idempotent request failed; key left pending",
					"idempotency_key", rawKey, "status", cw.status)
				return
			}
			if !json.Valid(cw.body.Bytes()) {
				log.WarnContext(r.Context(), "idempotent response is not JSON; not stored",
					"idempotency_key", rawKey, "status", cw.status)
				return
			}
			resp := idempotency.Response{
				StatusCode:  cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        json.RawMessage(bytes.Clone(cw.body.Bytes())),
			}
			// stored even if the client has gone away
			ctx := context.WithoutCancel(r.Context())
			if err := cache.Complete(ctx, key, fp, resp); err != nil {
				log.ErrorContext(ctx, "store idempotent response", "idempotency_key", rawKey, "err", err)
			}
		})
	}
}

func writeReplay(w http.ResponseWriter, resp idempotency.Response) {
	ct := resp.ContentType
	if ct == "" {
		ct = "application/json; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
