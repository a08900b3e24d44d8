package entity

import (
	"math"
	"time"

	"github.com/jhoicas/marketplace-stock/internal/domain"
)

// StockLedger representa las cantidades actuales de un SKU.
// Invariante: Available >= 0, Reserved >= 0, Total = Available + Reserved.
// Solo se modifica a través de Apply (movimientos) y SetThreshold.
type StockLedger struct {
	SKU               string // inmutable tras la creación
	ProductID         string
	SellerID          string
	Available         int64
	Reserved          int64
	Total             int64
	LowStockThreshold int64
	Status            StockStatus
	Version           int64 // se incrementa en cada mutación (control optimista)
	Retired           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LedgerSnapshot vista de solo lectura del ledger.
type LedgerSnapshot struct {
	Available         int64       `json:"available"`
	Reserved          int64       `json:"reserved"`
	Total             int64       `json:"total"`
	Status            StockStatus `json:"status"`
	LowStockThreshold int64       `json:"low_stock_threshold"`
	Version           int64       `json:"version"`
}

// NewStockLedger crea un ledger vacío (out_of_stock) para un SKU recién registrado.
func NewStockLedger(sku, productID, sellerID string, threshold int64, now time.Time) (*StockLedger, error) {
	if sku == "" {
		return nil, domain.NewValidationError("sku", "requerido")
	}
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "requerido")
	}
	if threshold < 0 {
		return nil, domain.NewValidationError("low_stock_threshold", "no puede ser negativo")
	}
	return &StockLedger{
		SKU:               sku,
		ProductID:         productID,
		SellerID:          sellerID,
		LowStockThreshold: threshold,
		Status:            DeriveStatus(0, threshold),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// AddQuantity suma dos cantidades; ok es false si el resultado desborda int64.
func AddQuantity(a, b int64) (sum int64, ok bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// Apply aplica los deltas sobre available y reserved. Si el resultado dejaría algún
// campo en negativo devuelve InsufficientStockError; si desborda int64, ValidationError.
// En ambos casos el ledger no cambia.
func (l *StockLedger) Apply(deltaAvailable, deltaReserved int64) (LedgerSnapshot, error) {
	newAvailable, okA := AddQuantity(l.Available, deltaAvailable)
	newReserved, okR := AddQuantity(l.Reserved, deltaReserved)
	if !okA || !okR {
		return l.Snapshot(), domain.NewValidationError("quantity", "la cantidad desborda el máximo del ledger")
	}
	if newAvailable < 0 {
		return l.Snapshot(), &domain.InsufficientStockError{
			SKU: l.SKU, Field: "available", Have: l.Available, Requested: -deltaAvailable,
		}
	}
	if newReserved < 0 {
		return l.Snapshot(), &domain.InsufficientStockError{
			SKU: l.SKU, Field: "reserved", Have: l.Reserved, Requested: -deltaReserved,
		}
	}
	total, ok := AddQuantity(newAvailable, newReserved)
	if !ok {
		return l.Snapshot(), domain.NewValidationError("quantity", "el total desborda el máximo del ledger")
	}
	l.Available = newAvailable
	l.Reserved = newReserved
	l.Total = total
	l.Status = DeriveStatus(l.Available, l.LowStockThreshold)
	l.Version++
	return l.Snapshot(), nil
}

// SetThreshold cambia el umbral de stock bajo y recalcula el estado. No toca cantidades.
func (l *StockLedger) SetThreshold(threshold int64) error {
	if threshold < 0 {
		return domain.NewValidationError("low_stock_threshold", "no puede ser negativo")
	}
	l.LowStockThreshold = threshold
	l.Status = DeriveStatus(l.Available, threshold)
	l.Version++
	return nil
}

// Retire marca el SKU como retirado. Deja de aceptar movimientos y de contar en resúmenes.
func (l *StockLedger) Retire(now time.Time) {
	if l.Retired {
		return
	}
	l.Retired = true
	l.Version++
	l.UpdatedAt = now
}

// Snapshot devuelve el estado consistente tras el último movimiento aplicado.
func (l *StockLedger) Snapshot() LedgerSnapshot {
	return LedgerSnapshot{
		Available:         l.Available,
		Reserved:          l.Reserved,
		Total:             l.Total,
		Status:            l.Status,
		LowStockThreshold: l.LowStockThreshold,
		Version:           l.Version,
	}
}

// Clone copia el ledger (los repositorios en memoria no comparten punteros).
func (l *StockLedger) Clone() *StockLedger {
	c := *l
	return &c
}
