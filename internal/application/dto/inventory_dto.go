package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// RegisterMovementRequest body para POST /api/inventory/movements.
type RegisterMovementRequest struct {
	MovementID string `json:"movement_id"`
	SKU        string `json:"sku"`
	Type       string `json:"type"`     // addition, sale, return, damage, adjustment, reserve, release, fulfill
	Quantity   int64  `json:"quantity"` // para adjustment: valor absoluto de available
	Reason     string `json:"reason,omitempty"`
	// Timestamp opcional. En un lote, los movimientos sin timestamp se consideran simultáneos.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// BatchMovementRequest body para POST /api/inventory/movements/batch.
type BatchMovementRequest struct {
	Movements []RegisterMovementRequest `json:"movements"`
}

// MovementResponse resultado de un movimiento (o de su repetición idempotente).
type MovementResponse struct {
	MovementID string                `json:"movement_id"`
	SKU        string                `json:"sku"`
	Type       entity.MovementType   `json:"type"`
	Quantity   int64                 `json:"quantity"`
	Replayed   bool                  `json:"replayed"`
	Ledger     entity.LedgerSnapshot `json:"ledger"`
	Status     entity.StockStatus    `json:"status"`
	AppliedAt  time.Time             `json:"applied_at"`
}

// BatchItemResponse resultado por movimiento de un lote.
type BatchItemResponse struct {
	MovementID string            `json:"movement_id"`
	SKU        string            `json:"sku"`
	Result     *MovementResponse `json:"result,omitempty"`
	Error      *ErrorResponse    `json:"error,omitempty"`
}

// InventoryItem ledger unido a los metadatos del producto (listados y reporte).
type InventoryItem struct {
	SKU               string             `json:"sku"`
	ProductID         string             `json:"product_id"`
	ProductName       string             `json:"product_name"`
	SellerID          string             `json:"seller_id"`
	Available         int64              `json:"available"`
	Reserved          int64              `json:"reserved"`
	Total             int64              `json:"total"`
	LowStockThreshold int64              `json:"low_stock_threshold"`
	Status            entity.StockStatus `json:"status"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	StockValue        decimal.Decimal    `json:"stock_value"` // available × unit_price
	Retired           bool               `json:"retired"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// InventoryListResponse respuesta paginada de GET /api/inventory.
type InventoryListResponse struct {
	Items []InventoryItem `json:"items"`
	Page  PageResponse    `json:"page"`
}

// SummaryResponse respuesta de GET /api/inventory/summary.
type SummaryResponse struct {
	Scope      string          `json:"scope"`
	Total      int             `json:"total"`
	InStock    int             `json:"in_stock"`
	LowStock   int             `json:"low_stock"`
	OutOfStock int             `json:"out_of_stock"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// RegisterSKURequest body para POST /api/inventory/skus.
type RegisterSKURequest struct {
	SKU               string `json:"sku"`
	ProductID         string `json:"product_id"`
	LowStockThreshold *int64 `json:"low_stock_threshold,omitempty"` // nil = umbral por defecto
}

// ThresholdRequest body para PUT /api/inventory/skus/:sku/threshold.
type ThresholdRequest struct {
	LowStockThreshold *int64 `json:"low_stock_threshold"`
}

// LedgerResponse estado de un SKU.
type LedgerResponse struct {
	SKU       string                `json:"sku"`
	ProductID string                `json:"product_id"`
	SellerID  string                `json:"seller_id"`
	Retired   bool                  `json:"retired"`
	Ledger    entity.LedgerSnapshot `json:"ledger"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// MovementListResponse historial de movimientos de un SKU.
type MovementListResponse struct {
	Items []*entity.AppliedEvent `json:"items"`
	Page  PageResponse           `json:"page"`
}

// EditStockRequest body para PUT /api/products/:id/stock.
// Se acepta la cantidad simple o la representación heredada en "stock".
type EditStockRequest struct {
	Quantity   *int64          `json:"quantity,omitempty"`
	Stock      json.RawMessage `json:"stock,omitempty"`
	MovementID string          `json:"movement_id,omitempty"`
}

// ProductStockResponse vista simplificada del stock de un producto.
type ProductStockResponse struct {
	ProductID         string                `json:"product_id"`
	Quantity          int64                 `json:"quantity"`
	Status            entity.StockStatus    `json:"status"`
	LowStockThreshold int64                 `json:"low_stock_threshold"`
	Policy            entity.SnapshotPolicy `json:"policy"`
	SKUCount          int                   `json:"sku_count"`
	NeedsReview       bool                  `json:"needs_review"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// ReconcileResponse resultado de reconciliar o verificar un producto.
type ReconcileResponse struct {
	ProductID string                `json:"product_id"`
	Diverged  bool                  `json:"diverged"`
	Stored    *ProductStockResponse `json:"stored,omitempty"`
	Computed  *ProductStockResponse `json:"computed"`
}

// ToProductStockResponse convierte la entidad a DTO.
func ToProductStockResponse(s *entity.ProductStockSnapshot) *ProductStockResponse {
	if s == nil {
		return nil
	}
	return &ProductStockResponse{
		ProductID:         s.ProductID,
		Quantity:          s.Quantity,
		Status:            s.Status,
		LowStockThreshold: s.LowStockThreshold,
		Policy:            s.Policy,
		SKUCount:          s.SKUCount,
		NeedsReview:       s.NeedsReview,
		UpdatedAt:         s.UpdatedAt,
	}
}

// ToLedgerResponse convierte la entidad a DTO.
func ToLedgerResponse(l *entity.StockLedger) *LedgerResponse {
	return &LedgerResponse{
		SKU:       l.SKU,
		ProductID: l.ProductID,
		SellerID:  l.SellerID,
		Retired:   l.Retired,
		Ledger:    l.Snapshot(),
		UpdatedAt: l.UpdatedAt,
	}
}

// ToMovementResponse convierte el evento aplicado a DTO.
func ToMovementResponse(ev *entity.AppliedEvent, replayed bool) *MovementResponse {
	return &MovementResponse{
		MovementID: ev.MovementID,
		SKU:        ev.SKU,
		Type:       ev.Type,
		Quantity:   ev.Quantity,
		Replayed:   replayed,
		Ledger:     ev.After,
		Status:     ev.After.Status,
		AppliedAt:  ev.AppliedAt,
	}
}

// RestockSuggestion SKU bajo su umbral con la cantidad sugerida de reposición.
type RestockSuggestion struct {
	Priority       int                `json:"priority"` // 1 = más urgente
	SKU            string             `json:"sku"`
	ProductID      string             `json:"product_id"`
	ProductName    string             `json:"product_name"`
	SellerID       string             `json:"seller_id"`
	Available      int64              `json:"available"`
	Reserved       int64              `json:"reserved"`
	Threshold      int64              `json:"low_stock_threshold"`
	Status         entity.StockStatus `json:"status"`
	IdealStock     int64              `json:"ideal_stock"`
	SuggestedQty   int64              `json:"suggested_qty"`
	EstimatedValue decimal.Decimal    `json:"estimated_value"` // suggested_qty × unit_price
}
