package repository

import (
	"context"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// StockMovementRepository log append-only de movimientos aplicados, indexado por movement_id.
type StockMovementRepository interface {
	// Append devuelve domain.ErrDuplicate si el movement_id ya existe.
	Append(ctx context.Context, event *entity.AppliedEvent) error
	// Get devuelve nil, nil si el movement_id no fue aplicado.
	Get(ctx context.Context, movementID string) (*entity.AppliedEvent, error)
	ListBySKU(ctx context.Context, sku string, limit, offset int) ([]*entity.AppliedEvent, error)
	// ListAll devuelve el log completo (reconstrucción de ledgers).
	ListAll(ctx context.Context) ([]*entity.AppliedEvent, error)
}
