package repository

import (
	"context"
	"errors"

	"github.com/baharkarakas/paycore/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrStaleStatus is returned by conditional updates when the stored
	// status no longer matches the expected one.
	ErrStaleStatus = errors.New("status changed concurrently")
)

type Merchants interface {
	Create(ctx context.Context, m models.Merchant) (models.Merchant, error)
	GetByID(ctx context.Context, id string) (models.Merchant, error)
	GetByEmail(ctx context.Context, email string) (models.Merchant, error)
	List(ctx context.Context, limit, offset int) ([]models.Merchant, error)
}

type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	// Update applies upd only while the stored status equals expected.
	Update(ctx context.Context, id string, expected models.TransactionStatus, upd models.TransactionUpdate) (models.Transaction, error)
}

type Settlements interface {
	// Create inserts s unless a settlement with the same id exists, in which
	// case the stored one is returned with created=false.
	Create(ctx context.Context, s models.Settlement) (stored models.Settlement, created bool, err error)
	GetByID(ctx context.Context, id string) (models.SettlementDetail, error)
	Update(ctx context.Context, id string, expected models.SettlementStatus, upd models.SettlementUpdate) (models.Settlement, error)
	ListByMerchant(ctx context.Context, merchantID string, f models.SettlementFilter) ([]models.SettlementDetail, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

type Repositories struct {
	Merchants    Merchants
	Transactions Transactions
	Settlements  Settlements
	AuditLogs    AuditLogs
}
