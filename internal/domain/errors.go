package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound                = errors.New("recurso no encontrado")
	ErrInvalidInput            = errors.New("entrada inválida")
	ErrDuplicate               = errors.New("recurso duplicado")
	ErrUnauthorized            = errors.New("no autorizado")
	ErrForbidden               = errors.New("acceso denegado")
	ErrInsufficientStock       = errors.New("stock insuficiente")
	ErrUnknownSKU              = errors.New("sku desconocido")
	ErrUnknownProduct          = errors.New("producto desconocido")
	ErrAmbiguousReconciliation = errors.New("reconciliación ambigua: el producto tiene varios SKU")
	ErrConcurrencyConflict     = errors.New("conflicto de concurrencia")
	ErrLockUnavailable         = errors.New("sku ocupado, reintente")
)

// ValidationError describe un campo inválido. errors.Is(err, ErrInvalidInput) es verdadero.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError construye un ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// InsufficientStockError indica que un movimiento dejaría en negativo available o reserved.
// errors.Is(err, ErrInsufficientStock) es verdadero.
type InsufficientStockError struct {
	SKU       string
	Field     string // "available" | "reserved"
	Have      int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s: %s=%d, solicitado=%d", e.SKU, e.Field, e.Have, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
