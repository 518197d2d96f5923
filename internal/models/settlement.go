package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementPending    SettlementStatus = "pending"
	SettlementProcessing SettlementStatus = "processing"
	SettlementCompleted  SettlementStatus = "completed"
	SettlementFailed     SettlementStatus = "failed"
	// SettlementDeleted is reserved for soft delete; no transition reaches it yet.
	SettlementDeleted SettlementStatus = "deleted"
)

var settlementTransitions = map[SettlementStatus][]SettlementStatus{
	SettlementPending:    {SettlementProcessing, SettlementCompleted, SettlementFailed},
	SettlementProcessing: {SettlementProcessing, SettlementCompleted, SettlementFailed},
}

func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementPending, SettlementProcessing, SettlementCompleted, SettlementFailed, SettlementDeleted:
		return true
	}
	return false
}

func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	for _, n := range settlementTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func (s SettlementStatus) Terminal() bool { return len(settlementTransitions[s]) == 0 }

type Settlement struct {
	ID             string           `json:"id"`
	MerchantID     string           `json:"merchant_id"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	SettlementDate time.Time        `json:"settlement_date"`
	Reference      *string          `json:"reference,omitempty"`
	Status         SettlementStatus `json:"status"`
	FailureReason  *string          `json:"failure_reason,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	FailedAt       *time.Time       `json:"failed_at,omitempty"`
	TransactionIDs []string         `json:"transaction_ids"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SettlementDetail is a settlement joined with its merchant summary.
type SettlementDetail struct {
	Settlement
	Merchant MerchantSummary `json:"merchant"`
}

type SettlementUpdate struct {
	Status         SettlementStatus
	FailureReason  *string
	CompletedAt    *time.Time
	FailedAt       *time.Time
	TransactionIDs []string // nil keeps the stored list
}

func (u SettlementUpdate) Apply(s *Settlement, now time.Time) {
	s.Status = u.Status
	if u.FailureReason != nil {
		s.FailureReason = u.FailureReason
	}
	if u.CompletedAt != nil {
		s.CompletedAt = u.CompletedAt
	}
	if u.FailedAt != nil {
		s.FailedAt = u.FailedAt
	}
	if u.TransactionIDs != nil {
		s.TransactionIDs = append([]string(nil), u.TransactionIDs...)
	}
	s.UpdatedAt = now
}

type SettlementFilter struct {
	Limit     int
	Offset    int
	Status    SettlementStatus
	From      *time.Time
	To        *time.Time
	SortBy    string // settlement_date | created_at | total_amount
	SortOrder string // ASC | DESC
}

// Normalize fills defaults and clamps the filter to supported values.
func (f SettlementFilter) Normalize() SettlementFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch f.SortBy {
	case "settlement_date", "created_at", "total_amount":
	default:
		f.SortBy = "settlement_date"
	}
	if f.SortOrder != "ASC" {
		f.SortOrder = "DESC"
	}
	return f
}
