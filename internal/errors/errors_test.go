package errors_test

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperror "stockledger/internal/errors"
)

func TestMapToHTTPStatus_TypedErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		category string
	}{
		{"validation", apperror.NewValidationError("price must be non-negative"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", apperror.NewNotFoundError("product 1"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", apperror.NewConflictError("username taken"), http.StatusConflict, "CONFLICT"},
		{"stock", apperror.NewInsufficientStockError(1, 45, 50), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"unauthorized", apperror.NewUnauthorizedError("bad token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", apperror.NewForbiddenError("admin only"), http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, category, message := apperror.MapToHTTPStatus(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.category, category)
			assert.Equal(t, tc.err.Error(), message)
		})
	}
}

func TestMapToHTTPStatus_WrappedError(t *testing.T) {
	err := fmt.Errorf("recording sale: %w", apperror.NewInsufficientStockError(7, 2, 3))

	status, category, message := apperror.MapToHTTPStatus(err)

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", category)
	assert.Contains(t, message, "available 2, requested 3")
}

func TestMapToHTTPStatus_InternalHidesCause(t *testing.T) {
	err := apperror.NewDBError("failed to insert sale", sql.ErrConnDone)

	status, category, message := apperror.MapToHTTPStatus(err)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", category)
	assert.NotContains(t, message, sql.ErrConnDone.Error())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestMapToHTTPStatus_UntypedError(t *testing.T) {
	status, category, _ := apperror.MapToHTTPStatus(fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "UNKNOWN_ERROR", category)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, apperror.IsNotFound(fmt.Errorf("wrap: %w", apperror.NewNotFoundError("sale 3"))))
	assert.False(t, apperror.IsNotFound(apperror.NewValidationError("x")))
	assert.False(t, apperror.IsNotFound(nil))
}
