// Package webhook authenticates inbound settlement callbacks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/baharkarakas/paycore/internal/models"
)

const DefaultMaxAge = 5 * time.Minute

var ErrMissingSecret = errors.New("webhook secret is not configured")

type Verifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

type Option func(*Verifier)

// WithMaxAge narrows the freshness window. It can not be widened past
// DefaultMaxAge; non-positive values are ignored.
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 && d <= DefaultMaxAge {
			v.maxAge = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(v *Verifier) { v.now = now } }

// NewVerifier returns ErrMissingSecret for an empty secret.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	v := &Verifier{secret: []byte(secret), maxAge: DefaultMaxAge, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Verify reports whether signatureHex is a fresh HMAC-SHA256 of payload.
// It never panics and fails closed on any problem.
func (v *Verifier) Verify(payload map[string]any, signatureHex string, timestamp any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if v == nil || len(v.secret) == 0 {
		return false
	}
	if signatureHex == "" || timestamp == nil {
		return false
	}
	ts, err := models.ParseTimestamp(timestamp)
	if err != nil {
		return false
	}
	if age := v.now().Sub(ts); age > v.maxAge || age < -v.maxAge {
		return false
	}
	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	want, err := v.mac(payload)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}

// VerifyJSON decodes a raw webhook body, pulls signature and timestamp out of
// it and verifies the rest. The decoded object is returned for logging.
func (v *Verifier) VerifyJSON(body []byte) (map[string]any, bool) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, false
	}
	sig, _ := payload[SignatureField].(string)
	return payload, v.Verify(payload, sig, payload["timestamp"])
}

// Sign returns the hex signature a sender attaches to payload.
func (v *Verifier) Sign(payload map[string]any) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	sum, err := v.mac(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func (v *Verifier) mac(payload map[string]any) ([]byte, error) {
	msg, err := Canonical(payload)
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, v.secret)
	h.Write(msg)
	return h.Sum(nil), nil
}
