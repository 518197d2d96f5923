package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

type merchantsRepo struct{ pool *pgxpool.Pool }

const merchantCols = `id, name, email, bank_name, bank_account_number, settlement_currency, api_key_hash, created_at, updated_at`

func scanMerchant(row pgx.Row) (models.Merchant, error) {
	var m models.Merchant
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.BankName, &m.BankAccountNumber,
		&m.SettlementCurrency, &m.APIKeyHash, &m.CreatedAt, &m.UpdatedAt)
	return m, mapErr(err)
}

func (r *merchantsRepo) Create(ctx context.Context, m models.Merchant) (models.Merchant, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return scanMerchant(r.pool.QueryRow(ctx,
		`INSERT INTO merchants(id, name, email, bank_name, bank_account_number, settlement_currency, api_key_hash)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+merchantCols,
		m.ID, m.Name, m.Email, m.BankName, m.BankAccountNumber, m.SettlementCurrency, m.APIKeyHash,
	))
}

func (r *merchantsRepo) GetByID(ctx context.Context, id string) (models.Merchant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Merchant{}, repo.ErrNotFound
	}
	return scanMerchant(r.pool.QueryRow(ctx, `SELECT `+merchantCols+` FROM merchants WHERE id=$1`, id))
}

func (r *merchantsRepo) GetByEmail(ctx context.Context, email string) (models.Merchant, error) {
	return scanMerchant(r.pool.QueryRow(ctx, `SELECT `+merchantCols+` FROM merchants WHERE email=$1`, email))
}

func (r *merchantsRepo) List(ctx context.Context, limit, offset int) ([]models.Merchant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+merchantCols+` FROM merchants ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
