package models

import (
	"errors"
	"strings"
	"time"
)

type Merchant struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	BankName           string    `json:"bank_name,omitempty"`
	BankAccountNumber  string    `json:"bank_account_number,omitempty"`
	SettlementCurrency string    `json:"settlement_currency"`
	APIKeyHash         string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (m *Merchant) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	if len(m.Name) < 2 { return errors.New("name too short") }
	if !strings.Contains(m.Email, "@") { return errors.New("invalid email") }
	if m.SettlementCurrency == "" { m.SettlementCurrency = "NGN" }
	if len(m.SettlementCurrency) != 3 { return errors.New("settlement currency must be a 3-letter code") }
	m.SettlementCurrency = strings.ToUpper(m.SettlementCurrency)
	return nil
}

func (m Merchant) Summary() MerchantSummary {
	return MerchantSummary{
		ID:                m.ID,
		Name:              m.Name,
		Email:             m.Email,
		BankName:          m.BankName,
		BankAccountNumber: m.BankAccountNumber,
	}
}

type MerchantSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	BankName          string `json:"bank_name,omitempty"`
	BankAccountNumber string `json:"bank_account_number,omitempty"`
}
