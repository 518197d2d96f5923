package validate

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Message is the pipe-delimited terminal message MTI|cardNumber|amount|merchantId.
type Message struct {
	MTI        string
	CardNumber string
	Amount     decimal.Decimal
	MerchantID string
}

var (
	ErrMessageFields = errors.New("message must have exactly four pipe-delimited fields")
	ErrMessageAmount = errors.New("amount is not a number")
)

// ParseMessage splits raw into its four typed fields. It only fails on shape
// problems; use IsValidMessage or Message.Validate for content rules.
func ParseMessage(raw string) (Message, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 4 {
		return Message{}, ErrMessageFields
	}
	amountStr := strings.TrimSpace(parts[2])
	if amountStr == "" {
		return Message{}, ErrMessageAmount
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Message{}, ErrMessageAmount
	}
	return Message{
		MTI:        parts[0],
		CardNumber: parts[1],
		Amount:     amount,
		MerchantID: strings.TrimSpace(parts[3]),
	}, nil
}

func (m Message) Validate() error {
	var errs Errs
	errs.Add(Required("mti", m.MTI))
	errs.Add(Required("card_number", m.CardNumber))
	errs.Add(Required("merchant_id", m.MerchantID))
	if m.MTI != "" && len(m.MTI) != 4 {
		errs.Add(&ErrField{Field: "mti", Msg: "must be exactly 4 characters"})
	}
	errs.Add(PositiveDecimal("amount", m.Amount))
	if m.CardNumber != "" && !IsValidCardNumber(m.CardNumber) {
		errs.Add(&ErrField{Field: "card_number", Msg: "failed luhn check"})
	}
	return errs.Err()
}

func IsValidMessage(raw string) bool {
	m, err := ParseMessage(raw)
	if err != nil {
		return false
	}
	return m.Validate() == nil
}
