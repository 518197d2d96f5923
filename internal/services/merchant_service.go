package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/auth"
	"github.com/baharkarakas/paycore/internal/models"
	repo "github.com/baharkarakas/paycore/internal/repository"
)

type MerchantService struct {
	r        repo.Merchants
	tokens   *auth.TokenManager
	currency string
	log      *slog.Logger
}

func NewMerchantService(r repo.Merchants, tokens *auth.TokenManager, defaultCurrency string, log *slog.Logger) *MerchantService {
	return &MerchantService{r: r, tokens: tokens, currency: defaultCurrency, log: log}
}

type NewMerchant struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	BankName           string `json:"bank_name"`
	BankAccountNumber  string `json:"bank_account_number"`
	SettlementCurrency string `json:"settlement_currency"`
}

// Create onboards a merchant and returns its API key. The key is not stored
// and cannot be recovered later.
func (s *MerchantService) Create(ctx context.Context, in NewMerchant) (models.Merchant, string, error) {
	m := models.Merchant{
		Name:               in.Name,
		Email:              in.Email,
		BankName:           in.BankName,
		BankAccountNumber:  in.BankAccountNumber,
		SettlementCurrency: in.SettlementCurrency,
	}
	if m.SettlementCurrency == "" {
		m.SettlementCurrency = s.currency
	}
	if err := m.Validate(); err != nil {
		return models.Merchant{}, "", apperr.Validation(err.Error())
	}

	key, err := auth.NewAPIKey()
	if err != nil {
		return models.Merchant{}, "", apperr.Internal("generate api key", err)
	}
	if m.APIKeyHash, err = auth.HashAPIKey(key); err != nil {
		return models.Merchant{}, "", apperr.Internal("hash api key", err)
	}

	created, err := s.r.Create(ctx, m)
	if err != nil {
		return models.Merchant{}, "", storeErr("create merchant", err, "merchant not found")
	}
	s.log.Info("merchant.created", "merchant_id", created.ID)
	return created, key, nil
}

func (s *MerchantService) Get(ctx context.Context, id string) (models.Merchant, error) {
	m, err := s.r.GetByID(ctx, id)
	return m, storeErr("get merchant", err, "merchant not found")
}

func (s *MerchantService) List(ctx context.Context, limit, offset int) ([]models.Merchant, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := s.r.List(ctx, limit, offset)
	return out, storeErr("list merchants", err, "")
}

// IssueToken exchanges merchant credentials for a token pair.
func (s *MerchantService) IssueToken(ctx context.Context, email, apiKey string) (auth.TokenPair, error) {
	m, err := s.r.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repo.ErrNotFound) {
		return auth.TokenPair{}, apperr.Authenticity("invalid credentials")
	}
	if err != nil {
		return auth.TokenPair{}, apperr.Internal("lookup merchant", err)
	}
	if auth.VerifyAPIKey(apiKey, m.APIKeyHash) != nil {
		return auth.TokenPair{}, apperr.Authenticity("invalid credentials")
	}
	pair, err := s.tokens.GeneratePair(m.ID)
	if err != nil {
		return auth.TokenPair{}, apperr.Internal("sign token", err)
	}
	return pair, nil
}

// Refresh issues a new pair for a valid refresh token of an existing merchant.
func (s *MerchantService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, apperr.Authenticity("invalid refresh token")
	}
	if _, err := s.r.GetByID(ctx, claims.MerchantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return auth.TokenPair{}, apperr.Authenticity("invalid refresh token")
		}
		return auth.TokenPair{}, apperr.Internal("lookup merchant", err)
	}
	pair, err := s.tokens.GeneratePair(claims.MerchantID)
	if err != nil {
		return auth.TokenPair{}, apperr.Internal("sign token", err)
	}
	return pair, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
