package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Unix(1756296000, 0)

	for name, in := range map[string]any{
		"rfc3339":       want.UTC().Format(time.RFC3339),
		"epoch seconds": json.Number("1756296000"),
		"epoch millis":  json.Number("1756296000000"),
		"numeric str":   "1756296000000",
		"float":         float64(1756296000),
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, name)
		require.True(t, got.Equal(want), "%s: got %v", name, got)
	}

	_, err := ParseTimestamp(true)
	require.Error(t, err)
}

func TestSettlementEvent_EpochTimestamps(t *testing.T) {
	want := time.Unix(1756296000, 0).UTC()

	for name, body := range map[string]string{
		"seconds":        `{"completedAt":1756296000,"failedAt":1756296000}`,
		"millis":         `{"completedAt":1756296000000,"failedAt":1756296000000}`,
		"numeric string": `{"completedAt":"1756296000","failedAt":"1756296000000"}`,
		"rfc3339":        `{"completedAt":"2025-08-27T12:00:00Z","failedAt":"2025-08-27T13:00:00+01:00"}`,
	} {
		var ev SettlementEvent
		require.NoError(t, json.Unmarshal([]byte(body), &ev), name)
		require.NotNil(t, ev.CompletedAt, name)
		require.NotNil(t, ev.FailedAt, name)
		require.True(t, ev.CompletedAt.Equal(want), "%s: got %v", name, ev.CompletedAt.Time)
		require.True(t, ev.FailedAt.Equal(want), "%s: got %v", name, ev.FailedAt.Time)
		require.Equal(t, time.UTC, ev.CompletedAt.Location())
	}

	var ev SettlementEvent
	require.NoError(t, json.Unmarshal([]byte(`{"completedAt":null}`), &ev))
	require.Nil(t, ev.CompletedAt)
	require.Error(t, json.Unmarshal([]byte(`{"completedAt":true}`), &ev))
}
