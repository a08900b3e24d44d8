package repository

import (
	"context"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para los metadatos de Product (DIP).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetByIDs devuelve los productos encontrados indexados por ID.
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error)
}
