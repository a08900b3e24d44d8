package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotPolicy define qué cantidad refleja la vista simplificada del catálogo.
type SnapshotPolicy string

const (
	PolicyAvailable SnapshotPolicy = "available" // suma de available
	PolicyOnHand    SnapshotPolicy = "on_hand"   // suma de available + reserved
)

// Valid indica si p es una política conocida.
func (p SnapshotPolicy) Valid() bool {
	return p == PolicyAvailable || p == PolicyOnHand
}

// Product metadatos del producto del catálogo. Price es el precio unitario
// usado para valorizar el inventario.
type Product struct {
	ID                string
	SellerID          string
	Name              string
	Price             decimal.Decimal
	SnapshotPolicy    SnapshotPolicy
	LowStockThreshold int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
