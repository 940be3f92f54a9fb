package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeNotFound, CodeOf(NotFound("order", "o-1")))
	require.Equal(t, CodeInvalidInput, CodeOf(InvalidInput("quantity", "must be positive")))
	require.Equal(t, CodeAlreadyProcessed, CodeOf(AlreadyProcessed("a-1", "approved")))
	require.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	// Wrapped coded errors keep their code through fmt wrapping.
	wrapped := fmt.Errorf("handling request: %w", NotFound("order", "o-1"))
	require.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to query orders")

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "failed to query orders")
	require.Contains(t, err.Error(), "connection refused")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidInput("field", "bad"), http.StatusBadRequest},
		{NotFound("order", "o-1"), http.StatusNotFound},
		{AlreadyProcessed("a-1", "rejected"), http.StatusConflict},
		{InsufficientStock(nil), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestInsufficientStockCarriesDetails(t *testing.T) {
	type shortage struct{ ItemID string }
	err := InsufficientStock([]shortage{{ItemID: "item-1"}})

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	require.NotNil(t, appErr.Details)
}
