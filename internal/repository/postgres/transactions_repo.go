package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txCols = `id, merchant_id, mti, amount::text, currency, card_masked, auth_code, processor_ref,
	network, failure_reason, status, settled_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		tx     models.Transaction
		amount string
	)
	err := row.Scan(&tx.ID, &tx.MerchantID, &tx.MTI, &amount, &tx.Currency, &tx.CardMasked,
		&tx.AuthCode, &tx.ProcessorRef, &tx.Network, &tx.FailureReason, &tx.Status,
		&tx.SettledAt, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return models.Transaction{}, mapErr(err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s amount: %w", tx.ID, err)
	}
	return tx, nil
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	return scanTransaction(r.pool.QueryRow(ctx, `
INSERT INTO transactions (id, merchant_id, mti, amount, currency, card_masked, status)
VALUES ($1,$2,$3,$4::numeric,$5,$6,$7)
RETURNING `+txCols,
		tx.ID, tx.MerchantID, tx.MTI, tx.Amount.String(), tx.Currency, tx.CardMasked, tx.Status,
	))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Transaction{}, repo.ErrNotFound
	}
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txCols+` FROM transactions WHERE id=$1`, id))
}

func (r *transactionsRepo) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.MerchantID != "" {
		args = append(args, f.MerchantID)
		where = append(where, fmt.Sprintf("merchant_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	q := `SELECT ` + txCols + ` FROM transactions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) Update(ctx context.Context, id string, expected models.TransactionStatus, upd models.TransactionUpdate) (models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Transaction{}, repo.ErrNotFound
	}
	tx, err := scanTransaction(r.pool.QueryRow(ctx, `
UPDATE transactions
   SET status=$3,
       auth_code=COALESCE($4, auth_code),
       processor_ref=COALESCE($5, processor_ref),
       network=COALESCE($6, network),
       failure_reason=COALESCE($7, failure_reason),
       settled_at=COALESCE($8, settled_at),
       updated_at=now()
 WHERE id=$1 AND status=$2
RETURNING `+txCols,
		id, expected, upd.Status, upd.AuthCode, upd.ProcessorRef, upd.Network, upd.FailureReason, upd.SettledAt,
	))
	if errors.Is(err, repo.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return models.Transaction{}, getErr
		}
		return models.Transaction{}, repo.ErrStaleStatus
	}
	return tx, err
}
