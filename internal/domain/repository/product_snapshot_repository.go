package repository

import (
	"context"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// ProductSnapshotRepository vista simplificada del stock por producto.
type ProductSnapshotRepository interface {
	// Get devuelve nil, nil si no existe.
	Get(ctx context.Context, productID string) (*entity.ProductStockSnapshot, error)
	// GetForUpdate bloquea la fila; serializa reconciliaciones del mismo producto.
	GetForUpdate(ctx context.Context, productID string) (*entity.ProductStockSnapshot, error)
	Upsert(ctx context.Context, snapshot *entity.ProductStockSnapshot) error
}
