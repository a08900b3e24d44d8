package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// RegisterProductRequest body para POST /api/products.
// Los productos los administra el catálogo; aquí solo se registran los datos que usa el inventario.
type RegisterProductRequest struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	SnapshotPolicy    string          `json:"snapshot_policy,omitempty"` // available (defecto) | on_hand
	LowStockThreshold *int64          `json:"low_stock_threshold,omitempty"`
}

// ProductResponse datos de un producto registrado.
type ProductResponse struct {
	ID                string                `json:"id"`
	SellerID          string                `json:"seller_id"`
	Name              string                `json:"name"`
	Price             decimal.Decimal       `json:"price"`
	SnapshotPolicy    entity.SnapshotPolicy `json:"snapshot_policy"`
	LowStockThreshold int64                 `json:"low_stock_threshold"`
	CreatedAt         time.Time             `json:"created_at"`
}

// ToProductResponse convierte la entidad a DTO.
func ToProductResponse(p *entity.Product) *ProductResponse {
	return &ProductResponse{
		ID:                p.ID,
		SellerID:          p.SellerID,
		Name:              p.Name,
		Price:             p.Price,
		SnapshotPolicy:    p.SnapshotPolicy,
		LowStockThreshold: p.LowStockThreshold,
		CreatedAt:         p.CreatedAt,
	}
}
