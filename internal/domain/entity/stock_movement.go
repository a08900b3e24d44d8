package entity

import "time"

// MovementType tipo de movimiento de stock.
type MovementType string

const (
	MovementAddition   MovementType = "addition"   // reposición
	MovementSale       MovementType = "sale"       // venta
	MovementReturn     MovementType = "return"     // devolución al stock vendible
	MovementDamage     MovementType = "damage"     // merma
	MovementAdjustment MovementType = "adjustment" // conteo físico: valor absoluto de available
	MovementReserve    MovementType = "reserve"    // available -> reserved
	MovementRelease    MovementType = "release"    // reserved -> available
	MovementFulfill    MovementType = "fulfill"    // sale del reservado (pedido despachado)
)

// Valid indica si t es un tipo de movimiento conocido.
func (t MovementType) Valid() bool {
	switch t {
	case MovementAddition, MovementSale, MovementReturn, MovementDamage, MovementAdjustment,
		MovementReserve, MovementRelease, MovementFulfill:
		return true
	}
	return false
}

// Priority orden de desempate para movimientos simultáneos del mismo SKU:
// 0 = salidas (sale, damage, reserve, fulfill), 1 = entradas (addition, return, release), 2 = adjustment.
func (t MovementType) Priority() int {
	switch t {
	case MovementSale, MovementDamage, MovementReserve, MovementFulfill:
		return 0
	case MovementAddition, MovementReturn, MovementRelease:
		return 1
	default:
		return 2
	}
}

// StockMovement evento tipado que cambia cantidades del ledger.
// Quantity >= 0; para adjustment es el valor absoluto objetivo de available.
type StockMovement struct {
	MovementID string
	SKU        string
	Type       MovementType
	Quantity   int64
	Reason     string
	Timestamp  time.Time
	CreatedBy  string
}

// AppliedEvent registro inmutable de un movimiento aplicado (log de movimientos).
// Sequence es la versión del ledger tras aplicar el movimiento.
type AppliedEvent struct {
	ID         string         `json:"id"`
	MovementID string         `json:"movement_id"`
	SKU        string         `json:"sku"`
	ProductID  string         `json:"product_id"`
	SellerID   string         `json:"seller_id"`
	Type       MovementType   `json:"type"`
	Quantity   int64          `json:"quantity"`
	Reason     string         `json:"reason,omitempty"`
	Before     LedgerSnapshot `json:"before"`
	After      LedgerSnapshot `json:"after"`
	Sequence   int64          `json:"sequence"`
	AppliedAt  time.Time      `json:"applied_at"`
	CreatedBy  string         `json:"created_by,omitempty"`
}

// Movement reconstruye el movimiento original a partir del evento.
func (e *AppliedEvent) Movement() StockMovement {
	return StockMovement{
		MovementID: e.MovementID,
		SKU:        e.SKU,
		Type:       e.Type,
		Quantity:   e.Quantity,
		Reason:     e.Reason,
		Timestamp:  e.AppliedAt,
		CreatedBy:  e.CreatedBy,
	}
}
