package repository

import (
	"context"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// LedgerFilter filtros para listar ledgers. Campos vacíos no filtran.
type LedgerFilter struct {
	SellerID       string
	SKU            string
	ProductID      string
	Status         entity.StockStatus
	IncludeRetired bool
}

// LedgerMark marca de cambios del conjunto de ledgers: cada mutación incrementa la
// versión de un ledger y cada alta suma uno a Count, así dos marcas iguales implican
// el mismo estado.
type LedgerMark struct {
	Count      int
	VersionSum int64
}

// StockLedgerRepository define el puerto para consultar/actualizar el ledger por SKU.
// Usado dentro de transacciones para garantizar consistencia.
type StockLedgerRepository interface {
	Create(ctx context.Context, ledger *entity.StockLedger) error
	// Get devuelve nil, nil si el SKU no existe.
	Get(ctx context.Context, sku string) (*entity.StockLedger, error)
	// GetForUpdate bloquea la fila para update (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, sku string) (*entity.StockLedger, error)
	// Update persiste el ledger solo si la versión almacenada es expectedVersion;
	// si no, devuelve domain.ErrConcurrencyConflict.
	Update(ctx context.Context, ledger *entity.StockLedger, expectedVersion int64) error
	ListByProduct(ctx context.Context, productID string) ([]*entity.StockLedger, error)
	List(ctx context.Context, filter LedgerFilter) ([]*entity.StockLedger, error)
	// Mark cuenta los ledgers (retirados incluidos) y suma sus versiones.
	Mark(ctx context.Context) (LedgerMark, error)
}
