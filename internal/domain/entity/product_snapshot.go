package entity

import "time"

// ProductStockSnapshot vista simplificada del stock por producto (catálogo).
// Derivada de los ledgers de sus SKU; NeedsReview marca una divergencia detectada.
type ProductStockSnapshot struct {
	ProductID         string
	Quantity          int64
	Status            StockStatus
	LowStockThreshold int64
	Policy            SnapshotPolicy
	SKUCount          int
	NeedsReview       bool
	UpdatedAt         time.Time
}
