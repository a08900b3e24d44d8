package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/domain"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validación", domain.NewValidationError("quantity", "debe ser positiva"), 400, "VALIDATION"},
		{"sku", fmt.Errorf("submit: %w", domain.ErrUnknownSKU), 404, "UNKNOWN_SKU"},
		{"stock", &domain.InsufficientStockError{SKU: "A", Field: "available", Have: 1, Requested: 2}, 409, "INSUFFICIENT_STOCK"},
		{"ambiguo", domain.ErrAmbiguousReconciliation, 409, "AMBIGUOUS_RECONCILIATION"},
		{"lock", fmt.Errorf("redis: tiempo de espera agotado: %w", domain.ErrLockUnavailable), 503, "LOCK_UNAVAILABLE"},
		{"plazo", context.DeadlineExceeded, 503, "LOCK_UNAVAILABLE"},
		{"cancelada", fmt.Errorf("tx: %w", context.Canceled), 499, "CANCELED"},
		{"interno", errors.New("update stock ledger: FATAL: password authentication failed for user \"stock\""), 500, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestRespondError_NoExponeDetalleInterno(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return respondError(c, errors.New(`insert stock movement: ERROR: relation "stock_movements" does not exist (SQLSTATE 42P01)`))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "stock_movements")
	assert.NotContains(t, string(raw), "SQLSTATE")
	assert.Contains(t, string(raw), `"INTERNAL"`)
}
