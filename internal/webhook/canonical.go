package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
)

// SignatureField is excluded from the signing input; every other field,
// timestamp included, is covered by the HMAC.
const SignatureField = "signature"

var errNotObject = errors.New("webhook payload must be a JSON object")

// decodeObject parses body keeping numbers as their literal text, so an
// amount like 100.50 is signed exactly as the sender wrote it.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after webhook payload")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// Canonical serializes payload without the signature field. encoding/json
// writes map keys in sorted order at every depth and emits json.Number
// verbatim, which makes the output independent of the sender's field order.
func Canonical(payload map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == SignatureField {
			continue
		}
		clean[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clean); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
