package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TxnPending    TransactionStatus = "pending"
	TxnInitiated  TransactionStatus = "initiated"
	TxnAuthorized TransactionStatus = "authorized"
	TxnSettled    TransactionStatus = "settled"
	TxnFailed     TransactionStatus = "failed"
)

// transactionTransitions is the only place transaction moves are decided.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TxnPending:    {TxnInitiated},
	TxnInitiated:  {TxnAuthorized, TxnFailed},
	TxnAuthorized: {TxnSettled, TxnFailed},
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxnPending, TxnInitiated, TxnAuthorized, TxnSettled, TxnFailed:
		return true
	}
	return false
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, n := range transactionTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func (s TransactionStatus) Terminal() bool { return len(transactionTransitions[s]) == 0 }

type Transaction struct {
	ID            string            `json:"id"`
	MerchantID    string            `json:"merchant_id"`
	MTI           string            `json:"mti"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	CardMasked    string            `json:"card_masked"`
	AuthCode      *string           `json:"auth_code"`
	ProcessorRef  *string           `json:"processor_ref,omitempty"`
	Network       *string           `json:"network,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	Status        TransactionStatus `json:"status"`
	SettledAt     *time.Time        `json:"settled_at"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TransactionUpdate carries the fields a status transition writes. Nil pointers
// leave the stored value untouched.
type TransactionUpdate struct {
	Status        TransactionStatus
	AuthCode      *string
	ProcessorRef  *string
	Network       *string
	FailureReason *string
	SettledAt     *time.Time
}

func (u TransactionUpdate) Apply(tx *Transaction, now time.Time) {
	tx.Status = u.Status
	if u.AuthCode != nil {
		tx.AuthCode = u.AuthCode
	}
	if u.ProcessorRef != nil {
		tx.ProcessorRef = u.ProcessorRef
	}
	if u.Network != nil {
		tx.Network = u.Network
	}
	if u.FailureReason != nil {
		tx.FailureReason = u.FailureReason
	}
	if u.SettledAt != nil {
		tx.SettledAt = u.SettledAt
	}
	tx.UpdatedAt = now
}

type TransactionFilter struct {
	MerchantID string
	Status     TransactionStatus
	Limit      int
	Offset     int
}
