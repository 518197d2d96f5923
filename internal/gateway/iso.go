package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/moov-io/iso8583"
	"github.com/shopspring/decimal"
)

const (
	mtiAuthRequest    = "0100"
	mtiAuthResponse   = "0110"
	mtiAdviceRequest  = "0220"
	mtiAdviceResponse = "0230"
	mtiReversal       = "0400"
	mtiReversalReply  = "0410"

	fieldPAN          = 2
	fieldAmount       = 4
	fieldSTAN         = 11
	fieldRRN          = 37
	fieldAuthCode     = 38
	fieldResponseCode = 39
	fieldAcceptorID   = 42
	fieldAdditional   = 48

	rcApproved      = "00"
	rcDoNotHonor    = "05"
	rcInvalidAmount = "13"
	rcNoRecord      = "25"
	rcOverLimit     = "61"

	maxAdditionalLen = 999
	amountDigits     = 12
	rrnLen           = 12
)

func newFrame(mti string, fields map[int]string) (*iso8583.Message, error) {
	msg := iso8583.NewMessage(iso8583.Spec87)
	msg.MTI(mti)
	for id, v := range fields {
		if err := msg.Field(id, v); err != nil {
			return nil, fmt.Errorf("set field %d: %w", id, err)
		}
	}
	return msg, nil
}

func packFrame(mti string, fields map[int]string) ([]byte, error) {
	msg, err := newFrame(mti, fields)
	if err != nil {
		return nil, err
	}
	b, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", mti, err)
	}
	return b, nil
}

func unpackFrame(b []byte) (*iso8583.Message, string, error) {
	msg := iso8583.NewMessage(iso8583.Spec87)
	if err := msg.Unpack(b); err != nil {
		return nil, "", fmt.Errorf("unpack frame: %w", err)
	}
	mti, err := msg.GetMTI()
	if err != nil {
		return nil, "", fmt.Errorf("read mti: %w", err)
	}
	return msg, mti, nil
}

// fieldString reads an optional field; absent fields read as "".
func fieldString(msg *iso8583.Message, id int) string {
	v, err := msg.GetString(id)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func encodeAmount(amount decimal.Decimal) (string, error) {
	minor := amount.Shift(2).Round(0)
	if minor.IsNegative() || len(minor.String()) > amountDigits {
		return "", ErrAmountOutOfRange
	}
	return fmt.Sprintf("%0*d", amountDigits, minor.IntPart()), nil
}

func decodeAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-2), nil
}

func formatSTAN(n uint32) string { return fmt.Sprintf("%06d", n%1_000_000) }

func echoSTAN(s string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return "", fmt.Errorf("bad stan %q", s)
	}
	return formatSTAN(uint32(n)), nil
}

func sameSTAN(a, b string) bool {
	x, errA := strconv.Atoi(strings.TrimSpace(a))
	y, errB := strconv.Atoi(strings.TrimSpace(b))
	return errA == nil && errB == nil && x == y
}

// acceptorID fits a merchant reference into the fixed 15 character field.
func acceptorID(ref string) string {
	ref = strings.ReplaceAll(ref, "-", "")
	if len(ref) > 15 {
		ref = ref[:15]
	}
	return fmt.Sprintf("%-15s", ref)
}
