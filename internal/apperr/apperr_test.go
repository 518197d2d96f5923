package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("authorize: %w", Conflict("cannot authorize in current state"))
	require.Equal(t, KindConflict, KindOf(err))
	require.True(t, Is(err, KindConflict))
	require.Equal(t, http.StatusConflict, KindOf(err).HTTPStatus())
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	require.Equal(t, KindInternal, KindOf(err))
	msg, details := Public(err)
	require.Equal(t, "internal error", msg)
	require.Nil(t, details)
}

func TestPublic_HidesInternalCause(t *testing.T) {
	err := Internal("store failure", errors.New("dial tcp 10.0.0.1:5432: refused"))
	msg, _ := Public(err)
	require.Equal(t, "internal error", msg)
	require.Contains(t, err.Error(), "refused")

	msg, details := Public(ValidationDetails("invalid payload", []string{"status"}))
	require.Equal(t, "invalid payload", msg)
	require.Equal(t, []string{"status"}, details)
}
