package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_IsIdempotentAndExposesCollectors(t *testing.T) {
	require.NotPanics(t, Init)
	require.NotPanics(t, Init)

	IdempotencyOutcomes.WithLabelValues("fresh").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `idempotency_outcomes_total{outcome="fresh"}`)
}
