package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Simulator is an in-process processor. Requests are packed into ISO 8583
// frames, answered by a fake issuer and unpacked again, so the frame layout
// is exercised end to end.
//
// It approves an authorization when EMV data is present and the amount is
// within limit. Capture is keyed by the retrieval reference alone, so any
// instance can capture an authorization another instance approved: a
// reference this instance issued is captured up to the authorized amount,
// any other well formed reference up to the limit. Capture IDs derive from
// the reference and are the same everywhere.
type Simulator struct {
	limit decimal.Decimal
	stan  atomic.Uint32

	mu     sync.Mutex
	auths  map[string]decimal.Decimal // authorized amount by RRN
	voided map[string]struct{}
	byKey  map[string]AuthorizeResult
}

func NewSimulator(limit decimal.Decimal) *Simulator {
	return &Simulator{
		limit:  limit,
		auths:  make(map[string]decimal.Decimal),
		voided: make(map[string]struct{}),
		byKey:  make(map[string]AuthorizeResult),
	}
}

var _ Processor = (*Simulator)(nil)

func (s *Simulator) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	if err := ctx.Err(); err != nil {
		return AuthorizeResult{}, err
	}
	if len(req.EMVPayload) > maxAdditionalLen {
		return AuthorizeResult{}, ErrPayloadTooLarge
	}
	if req.IdempotencyKey != "" {
		s.mu.Lock()
		prev, ok := s.byKey[req.MerchantRef+":"+req.IdempotencyKey]
		s.mu.Unlock()
		if ok {
			return prev, nil
		}
	}

	amount, err := encodeAmount(req.Amount)
	if err != nil {
		return AuthorizeResult{}, err
	}
	stan := formatSTAN(s.stan.Add(1))
	fields := map[int]string{
		fieldAmount:     amount,
		fieldSTAN:       stan,
		fieldAcceptorID: acceptorID(req.MerchantRef),
	}
	if req.CardMasked != "" {
		fields[fieldPAN] = req.CardMasked
	}
	if req.EMVPayload != "" {
		fields[fieldAdditional] = req.EMVPayload
	}
	frame, err := packFrame(mtiAuthRequest, fields)
	if err != nil {
		return AuthorizeResult{}, err
	}

	reply, err := s.issuer(frame)
	if err != nil {
		return AuthorizeResult{}, err
	}
	msg, mti, err := unpackFrame(reply)
	if err != nil {
		return AuthorizeResult{}, err
	}
	if mti != mtiAuthResponse || !sameSTAN(fieldString(msg, fieldSTAN), stan) {
		return AuthorizeResult{}, fmt.Errorf("unexpected authorization reply %s", mti)
	}

	res := AuthorizeResult{
		Status:       Declined,
		Network:      NetworkForCard(req.CardMasked),
		ResponseCode: fieldString(msg, fieldResponseCode),
	}
	if res.ResponseCode == rcApproved {
		res.Status = Approved
		res.AuthCode = fieldString(msg, fieldAuthCode)
		res.ProcessorTxnID = "ptxn_" + fieldString(msg, fieldRRN)
	}
	if req.IdempotencyKey != "" {
		s.mu.Lock()
		s.byKey[req.MerchantRef+":"+req.IdempotencyKey] = res
		s.mu.Unlock()
	}
	return res, nil
}

func (s *Simulator) Capture(ctx context.Context, processorTxnID string, amount decimal.Decimal) (CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return CaptureResult{}, err
	}
	encoded, err := encodeAmount(amount)
	if err != nil {
		return CaptureResult{}, err
	}
	rrn, ok := parseProcessorRef(processorTxnID)
	if !ok {
		return CaptureResult{Status: CaptureDeclined, ResponseCode: rcNoRecord}, nil
	}
	stan := formatSTAN(s.stan.Add(1))
	frame, err := packFrame(mtiAdviceRequest, map[int]string{
		fieldAmount: encoded,
		fieldSTAN:   stan,
		fieldRRN:    rrn,
	})
	if err != nil {
		return CaptureResult{}, err
	}

	reply, err := s.issuer(frame)
	if err != nil {
		return CaptureResult{}, err
	}
	msg, mti, err := unpackFrame(reply)
	if err != nil {
		return CaptureResult{}, err
	}
	if mti != mtiAdviceResponse || !sameSTAN(fieldString(msg, fieldSTAN), stan) {
		return CaptureResult{}, fmt.Errorf("unexpected capture reply %s", mti)
	}

	res := CaptureResult{Status: CaptureDeclined, ResponseCode: fieldString(msg, fieldResponseCode)}
	if res.ResponseCode == rcApproved {
		res.Status = Captured
		res.CaptureID = "cap_" + fieldString(msg, fieldAdditional)
	}
	return res, nil
}

// Void sends a reversal for an approved authorization. Later captures of the
// same reference on this instance are declined.
func (s *Simulator) Void(ctx context.Context, processorTxnID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rrn, ok := parseProcessorRef(processorTxnID)
	if !ok {
		return ErrUnknownReference
	}
	stan := formatSTAN(s.stan.Add(1))
	frame, err := packFrame(mtiReversal, map[int]string{
		fieldSTAN: stan,
		fieldRRN:  rrn,
	})
	if err != nil {
		return err
	}

	reply, err := s.issuer(frame)
	if err != nil {
		return err
	}
	msg, mti, err := unpackFrame(reply)
	if err != nil {
		return err
	}
	if mti != mtiReversalReply || !sameSTAN(fieldString(msg, fieldSTAN), stan) {
		return fmt.Errorf("unexpected reversal reply %s", mti)
	}
	if rc := fieldString(msg, fieldResponseCode); rc != rcApproved {
		return fmt.Errorf("reversal declined: %s", rc)
	}
	return nil
}

func parseProcessorRef(id string) (string, bool) {
	rrn, ok := strings.CutPrefix(id, "ptxn_")
	return rrn, ok && len(rrn) == rrnLen
}

// issuer plays the remote side: it decodes a request frame and encodes the
// matching response frame.
func (s *Simulator) issuer(frame []byte) ([]byte, error) {
	msg, mti, err := unpackFrame(frame)
	if err != nil {
		return nil, err
	}
	amount, err := decodeAmount(fieldString(msg, fieldAmount))
	if err != nil {
		return nil, fmt.Errorf("issuer amount: %w", err)
	}
	stan, err := echoSTAN(fieldString(msg, fieldSTAN))
	if err != nil {
		return nil, err
	}

	switch mti {
	case mtiAuthRequest:
		rc := rcApproved
		switch {
		case fieldString(msg, fieldAdditional) == "":
			rc = rcDoNotHonor
		case amount.LessThanOrEqual(decimal.Zero):
			rc = rcInvalidAmount
		case amount.GreaterThan(s.limit):
			rc = rcOverLimit
		}
		echoed, err := encodeAmount(amount)
		if err != nil {
			return nil, err
		}
		out := map[int]string{
			fieldAmount:       echoed,
			fieldSTAN:         stan,
			fieldResponseCode: rc,
		}
		if rc == rcApproved {
			rrn, authCode := newRRN(), newAuthCode()
			s.mu.Lock()
			s.auths[rrn] = amount
			s.mu.Unlock()
			out[fieldRRN] = rrn
			out[fieldAuthCode] = authCode
		}
		return packFrame(mtiAuthResponse, out)

	case mtiAdviceRequest:
		rrn := fieldString(msg, fieldRRN)
		out := map[int]string{
			fieldSTAN: stan,
			fieldRRN:  rrn,
		}
		s.mu.Lock()
		authorized, known := s.auths[rrn]
		_, voided := s.voided[rrn]
		s.mu.Unlock()
		switch {
		case voided, len(rrn) != rrnLen:
			out[fieldResponseCode] = rcNoRecord
		case amount.LessThanOrEqual(decimal.Zero):
			out[fieldResponseCode] = rcInvalidAmount
		case known && amount.GreaterThan(authorized):
			out[fieldResponseCode] = rcInvalidAmount
		case !known && amount.GreaterThan(s.limit):
			out[fieldResponseCode] = rcOverLimit
		default:
			out[fieldResponseCode] = rcApproved
			out[fieldAdditional] = rrn
		}
		return packFrame(mtiAdviceResponse, out)

	case mtiReversal:
		rrn := fieldString(msg, fieldRRN)
		out := map[int]string{
			fieldSTAN:         stan,
			fieldRRN:          rrn,
			fieldResponseCode: rcApproved,
		}
		if len(rrn) != rrnLen {
			out[fieldResponseCode] = rcNoRecord
		} else {
			s.mu.Lock()
			delete(s.auths, rrn)
			s.voided[rrn] = struct{}{}
			s.mu.Unlock()
		}
		return packFrame(mtiReversalReply, out)
	}
	return nil, fmt.Errorf("issuer: unsupported mti %s", mti)
}

func newRRN() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:rrnLen])
}

func newAuthCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
