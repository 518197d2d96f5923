package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Webhook status values. "initiated" creates a pending settlement; the rest
// name the settlement status they move to.
const (
	EventInitiated  = "initiated"
	EventProcessing = "processing"
	EventCompleted  = "completed"
	EventFailed     = "failed"
)

// SettlementEvent is the settlement webhook body. Field names follow the
// sender's wire format.
type SettlementEvent struct {
	SettlementID   string           `json:"settlementId"`
	MerchantID     string           `json:"merchantId"`
	TotalAmount    *decimal.Decimal `json:"totalAmount,omitempty"`
	SettlementDate string           `json:"settlementDate,omitempty"`
	Status         string           `json:"status"`
	Reference      *string          `json:"reference,omitempty"`
	TransactionIDs []string         `json:"transactionIds,omitempty"`
	CompletedAt    *EventTime       `json:"completedAt,omitempty"`
	FailureReason  *string          `json:"failureReason,omitempty"`
	FailedAt       *EventTime       `json:"failedAt,omitempty"`
}

var settlementDateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// ParseSettlementDate accepts a calendar date or a full RFC 3339 timestamp and
// truncates to the UTC day.
func ParseSettlementDate(s string) (time.Time, error) {
	for _, layout := range settlementDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("invalid settlement date")
}
