// Package memory holds map-backed repositories with the same contracts as
// the postgres ones. Used by tests and REPO_BACKEND=memory local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

func NewRepositories() repo.Repositories {
	merchants := &Merchants{byID: map[string]models.Merchant{}}
	return repo.Repositories{
		Merchants:    merchants,
		Transactions: &Transactions{byID: map[string]models.Transaction{}},
		Settlements:  &Settlements{byID: map[string]models.Settlement{}, merchants: merchants},
		AuditLogs:    &AuditLogs{},
	}
}

func now() time.Time { return time.Now().UTC() }

type Merchants struct {
	mu   sync.RWMutex
	byID map[string]models.Merchant
}

func (r *Merchants) Create(_ context.Context, m models.Merchant) (models.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, m.Email) {
			return models.Merchant{}, repo.ErrDuplicate
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt, m.UpdatedAt = now(), now()
	r.byID[m.ID] = m
	return m, nil
}

func (r *Merchants) GetByID(_ context.Context, id string) (models.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return models.Merchant{}, repo.ErrNotFound
	}
	return m, nil
}

func (r *Merchants) GetByEmail(_ context.Context, email string) (models.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byID {
		if m.Email == email {
			return m, nil
		}
	}
	return models.Merchant{}, repo.ErrNotFound
}

func (r *Merchants) List(_ context.Context, limit, offset int) ([]models.Merchant, error) {
	r.mu.RLock()
	out := make([]models.Merchant, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

type Transactions struct {
	mu   sync.RWMutex
	byID map[string]models.Transaction
}

func (r *Transactions) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, ok := r.byID[tx.ID]; ok {
		return models.Transaction{}, repo.ErrDuplicate
	}
	tx.CreatedAt, tx.UpdatedAt = now(), now()
	r.byID[tx.ID] = tx
	return tx, nil
}

func (r *Transactions) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.byID[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx, nil
}

func (r *Transactions) List(_ context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	r.mu.RLock()
	var out []models.Transaction
	for _, tx := range r.byID {
		if f.MerchantID != "" && tx.MerchantID != f.MerchantID {
			continue
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		out = append(out, tx)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (r *Transactions) Update(_ context.Context, id string, expected models.TransactionStatus, upd models.TransactionUpdate) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.byID[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	if tx.Status != expected {
		return models.Transaction{}, repo.ErrStaleStatus
	}
	upd.Apply(&tx, now())
	r.byID[id] = tx
	return tx, nil
}

type Settlements struct {
	mu        sync.RWMutex
	byID      map[string]models.Settlement
	merchants *Merchants
}

func cloneSettlement(s models.Settlement) models.Settlement {
	s.TransactionIDs = append([]string{}, s.TransactionIDs...)
	return s
}

func (r *Settlements) Create(_ context.Context, s models.Settlement) (models.Settlement, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[s.ID]; ok {
		return cloneSettlement(existing), false, nil
	}
	s = cloneSettlement(s)
	s.CreatedAt, s.UpdatedAt = now(), now()
	r.byID[s.ID] = s
	return cloneSettlement(s), true, nil
}

func (r *Settlements) detail(s models.Settlement) models.SettlementDetail {
	d := models.SettlementDetail{Settlement: cloneSettlement(s)}
	if m, err := r.merchants.GetByID(context.Background(), s.MerchantID); err == nil {
		d.Merchant = m.Summary()
	}
	return d
}

func (r *Settlements) GetByID(_ context.Context, id string) (models.SettlementDetail, error) {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return models.SettlementDetail{}, repo.ErrNotFound
	}
	return r.detail(s), nil
}

func (r *Settlements) Update(_ context.Context, id string, expected models.SettlementStatus, upd models.SettlementUpdate) (models.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return models.Settlement{}, repo.ErrNotFound
	}
	if s.Status != expected {
		return models.Settlement{}, repo.ErrStaleStatus
	}
	upd.Apply(&s, now())
	r.byID[id] = s
	return cloneSettlement(s), nil
}

func (r *Settlements) ListByMerchant(_ context.Context, merchantID string, f models.SettlementFilter) ([]models.SettlementDetail, error) {
	f = f.Normalize()
	r.mu.RLock()
	var matched []models.Settlement
	for _, s := range r.byID {
		if s.MerchantID != merchantID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.From != nil && s.SettlementDate.Before(*f.From) {
			continue
		}
		if f.To != nil && s.SettlementDate.After(*f.To) {
			continue
		}
		matched = append(matched, s)
	}
	r.mu.RUnlock()

	compare := func(a, b models.Settlement) int {
		switch f.SortBy {
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "total_amount":
			return a.TotalAmount.Cmp(b.TotalAmount)
		default:
			return a.SettlementDate.Compare(b.SettlementDate)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		c := compare(matched[i], matched[j])
		if c == 0 {
			return matched[i].ID < matched[j].ID
		}
		if f.SortOrder == "ASC" {
			return c < 0
		}
		return c > 0
	})

	matched = page(matched, f.Limit, f.Offset)
	out := make([]models.SettlementDetail, 0, len(matched))
	for _, s := range matched {
		out = append(out, r.detail(s))
	}
	return out, nil
}

type AuditLogs struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *AuditLogs) Create(_ context.Context, l models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = now()
	r.entries = append(r.entries, l)
	return nil
}

// Entries returns a copy of the recorded audit logs.
func (r *AuditLogs) Entries() []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLog(nil), r.entries...)
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
