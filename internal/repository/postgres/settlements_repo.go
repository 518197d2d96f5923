package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

type settlementsRepo struct{ pool *pgxpool.Pool }

const settlementCols = `s.id, s.merchant_id, s.total_amount::text, s.settlement_date, s.reference, s.status,
	s.failure_reason, s.completed_at, s.failed_at, s.transaction_ids, s.created_at, s.updated_at`

const settlementDetailCols = settlementCols + `, m.id, m.name, m.email, m.bank_name, m.bank_account_number`

var settlementSortColumns = map[string]string{
	"settlement_date": "s.settlement_date",
	"created_at":      "s.created_at",
	"total_amount":    "s.total_amount",
}

func settlementDest(s *models.Settlement, amount *string) []any {
	return []any{&s.ID, &s.MerchantID, amount, &s.SettlementDate, &s.Reference, &s.Status,
		&s.FailureReason, &s.CompletedAt, &s.FailedAt, &s.TransactionIDs, &s.CreatedAt, &s.UpdatedAt}
}

func finishSettlement(s *models.Settlement, amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("settlement %s amount: %w", s.ID, err)
	}
	s.TotalAmount = d
	if s.TransactionIDs == nil {
		s.TransactionIDs = []string{}
	}
	return nil
}

func scanSettlement(row pgx.Row) (models.Settlement, error) {
	var (
		s      models.Settlement
		amount string
	)
	if err := row.Scan(settlementDest(&s, &amount)...); err != nil {
		return models.Settlement{}, mapErr(err)
	}
	return s, finishSettlement(&s, amount)
}

func scanSettlementDetail(row pgx.Row) (models.SettlementDetail, error) {
	var (
		d      models.SettlementDetail
		amount string
	)
	dest := append(settlementDest(&d.Settlement, &amount),
		&d.Merchant.ID, &d.Merchant.Name, &d.Merchant.Email, &d.Merchant.BankName, &d.Merchant.BankAccountNumber)
	if err := row.Scan(dest...); err != nil {
		return models.SettlementDetail{}, mapErr(err)
	}
	return d, finishSettlement(&d.Settlement, amount)
}

func (r *settlementsRepo) Create(ctx context.Context, s models.Settlement) (models.Settlement, bool, error) {
	ids := s.TransactionIDs
	if ids == nil {
		ids = []string{}
	}
	created, err := scanSettlement(r.pool.QueryRow(ctx, `
INSERT INTO settlements AS s (id, merchant_id, total_amount, settlement_date, reference, status, transaction_ids)
VALUES ($1,$2,$3::numeric,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
RETURNING `+settlementCols,
		s.ID, s.MerchantID, s.TotalAmount.String(), s.SettlementDate, s.Reference, s.Status, ids,
	))
	if errors.Is(err, repo.ErrNotFound) {
		existing, getErr := scanSettlement(r.pool.QueryRow(ctx,
			`SELECT `+settlementCols+` FROM settlements s WHERE s.id=$1`, s.ID))
		return existing, false, getErr
	}
	if err != nil {
		return models.Settlement{}, false, err
	}
	return created, true, nil
}

func (r *settlementsRepo) GetByID(ctx context.Context, id string) (models.SettlementDetail, error) {
	return scanSettlementDetail(r.pool.QueryRow(ctx, `
SELECT `+settlementDetailCols+`
  FROM settlements s
  JOIN merchants m ON m.id = s.merchant_id
 WHERE s.id=$1`, id))
}

func (r *settlementsRepo) Update(ctx context.Context, id string, expected models.SettlementStatus, upd models.SettlementUpdate) (models.Settlement, error) {
	s, err := scanSettlement(r.pool.QueryRow(ctx, `
UPDATE settlements AS s
   SET status=$3,
       failure_reason=COALESCE($4, s.failure_reason),
       completed_at=COALESCE($5, s.completed_at),
       failed_at=COALESCE($6, s.failed_at),
       transaction_ids=COALESCE($7, s.transaction_ids),
       updated_at=now()
 WHERE s.id=$1 AND s.status=$2
RETURNING `+settlementCols,
		id, expected, upd.Status, upd.FailureReason, upd.CompletedAt, upd.FailedAt, upd.TransactionIDs,
	))
	if errors.Is(err, repo.ErrNotFound) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM settlements WHERE id=$1)`, id).Scan(&exists); err != nil {
			return models.Settlement{}, err
		}
		if !exists {
			return models.Settlement{}, repo.ErrNotFound
		}
		return models.Settlement{}, repo.ErrStaleStatus
	}
	return s, err
}

func (r *settlementsRepo) ListByMerchant(ctx context.Context, merchantID string, f models.SettlementFilter) ([]models.SettlementDetail, error) {
	f = f.Normalize()
	args := []any{merchantID}
	where := []string{"s.merchant_id=$1"}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("s.status=$%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("s.settlement_date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("s.settlement_date <= $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)
	q := fmt.Sprintf(`
SELECT %s
  FROM settlements s
  JOIN merchants m ON m.id = s.merchant_id
 WHERE %s
 ORDER BY %s %s, s.id
 LIMIT $%d OFFSET $%d`,
		settlementDetailCols, strings.Join(where, " AND "),
		settlementSortColumns[f.SortBy], f.SortOrder, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SettlementDetail
	for rows.Next() {
		d, err := scanSettlementDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
