package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/repository"
)

// Repositories repositorios atados a una misma transacción.
type Repositories struct {
	Ledgers   repository.StockLedgerRepository
	Movements repository.StockMovementRepository
	Products  repository.ProductRepository
	Snapshots repository.ProductSnapshotRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el motor de inventario: o se aplica todo o nada.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repositories) error) error
}

// SKULocker exclusión mutua por SKU. Movimientos de SKU distintos no se bloquean entre sí.
type SKULocker interface {
	Lock(ctx context.Context, sku string) (unlock func(), err error)
}

// EventPublisher publica los movimientos aplicados a sistemas externos.
type EventPublisher interface {
	Publish(ctx context.Context, event *entity.AppliedEvent) error
}

// LedgerObserver recibe el ledger tras cada mutación confirmada.
type LedgerObserver interface {
	LedgerChanged(ctx context.Context, ledger *entity.StockLedger)
}

// StockReport datos del reporte de inventario.
type StockReport struct {
	Scope       string
	GeneratedAt time.Time
	Summary     domaininv.Summary
	Items       []dto.InventoryItem
}

// StockReportGenerator genera la representación PDF del reporte.
type StockReportGenerator interface {
	GenerateStockReport(ctx context.Context, report StockReport) ([]byte, error)
}

// NoopPublisher se usa cuando no hay broker configurado.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *entity.AppliedEvent) error { return nil }
