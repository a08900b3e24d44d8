package entity

// StockStatus estado derivado del stock disponible.
type StockStatus string

const (
	StatusInStock    StockStatus = "in_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusOutOfStock StockStatus = "out_of_stock"
)

// DefaultLowStockThreshold umbral usado cuando no se indica otro.
const DefaultLowStockThreshold int64 = 10

// Valid indica si s es un estado conocido.
func (s StockStatus) Valid() bool {
	switch s {
	case StatusInStock, StatusLowStock, StatusOutOfStock:
		return true
	}
	return false
}

// DeriveStatus función pura: out_of_stock si available = 0,
// low_stock si 0 < available < threshold, in_stock en otro caso.
func DeriveStatus(available, threshold int64) StockStatus {
	switch {
	case available <= 0:
		return StatusOutOfStock
	case available < threshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}
