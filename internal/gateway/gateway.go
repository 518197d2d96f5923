// Package gateway talks to the card processor. Only a simulated processor is
// provided; it exchanges ISO 8583 frames in process instead of over a network.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Decision string

const (
	Approved Decision = "approved"
	Declined Decision = "declined"
)

type CaptureStatus string

const (
	Captured        CaptureStatus = "captured"
	CaptureDeclined CaptureStatus = "declined"
)

var (
	ErrAmountOutOfRange = errors.New("amount out of range for processor")
	ErrPayloadTooLarge  = errors.New("emv payload too large")
	ErrUnknownReference = errors.New("unknown processor reference")
)

type AuthorizeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	CardMasked     string
	EMVPayload     string
	MerchantRef    string
	IdempotencyKey string
}

type AuthorizeResult struct {
	Status         Decision
	AuthCode       string
	ProcessorTxnID string
	Network        string
	ResponseCode   string
}

func (r AuthorizeResult) Approved() bool { return r.Status == Approved }

type CaptureResult struct {
	Status       CaptureStatus
	CaptureID    string
	ResponseCode string
}

func (r CaptureResult) Captured() bool { return r.Status == Captured }

type Processor interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error)
	Capture(ctx context.Context, processorTxnID string, amount decimal.Decimal) (CaptureResult, error)
	// Void reverses an approved authorization that will never be captured.
	Void(ctx context.Context, processorTxnID string) error
}

// NetworkForCard guesses the card scheme from the leading digits of a PAN or
// masked PAN.
func NetworkForCard(pan string) string {
	switch {
	case strings.HasPrefix(pan, "5060"), strings.HasPrefix(pan, "5061"), strings.HasPrefix(pan, "650"):
		return "VERVE"
	case strings.HasPrefix(pan, "4"):
		return "VISA"
	case strings.HasPrefix(pan, "34"), strings.HasPrefix(pan, "37"):
		return "AMEX"
	case len(pan) >= 2 && pan[0] == '5' && pan[1] >= '1' && pan[1] <= '5':
		return "MASTERCARD"
	case len(pan) >= 2 && pan[0] == '2' && pan[1] >= '2' && pan[1] <= '7':
		return "MASTERCARD"
	}
	return "UNKNOWN"
}
