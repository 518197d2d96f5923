package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventTime is a webhook timestamp. It decodes from an RFC 3339 string or a
// Unix epoch in seconds or milliseconds, as a number or a numeric string.
type EventTime struct {
	time.Time
}

func (t *EventTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// ParseTimestamp accepts RFC 3339 strings and Unix epochs in seconds or
// milliseconds, either as numbers or numeric strings.
func ParseTimestamp(ts any) (time.Time, error) {
	switch t := ts.(type) {
	case time.Time:
		return t, nil
	case json.Number:
		return parseEpoch(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, errors.New("invalid timestamp")
		}
		return epoch(int64(t)), nil
	case int64:
		return epoch(t), nil
	case int:
		return epoch(int64(t)), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, errors.New("empty timestamp")
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return parsed, nil
		}
		return parseEpoch(s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", ts)
	}
}

func parseEpoch(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
		n = int64(f)
	}
	return epoch(n), nil
}

// Values above 1e12 are milliseconds; 1e12 seconds is far past year 33000.
func epoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
