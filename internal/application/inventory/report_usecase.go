package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
)

// ReportUseCase arma el reporte de inventario (resumen + detalle por SKU) y lo entrega
// al generador PDF.
type ReportUseCase struct {
	queries   *QueryUseCase
	generator StockReportGenerator
	now       func() time.Time
}

// NewReportUseCase construye el caso de uso.
func NewReportUseCase(queries *QueryUseCase, generator StockReportGenerator) *ReportUseCase {
	return &ReportUseCase{queries: queries, generator: generator, now: time.Now}
}

// ExportInventoryPDF genera el PDF del alcance pedido.
func (uc *ReportUseCase) ExportInventoryPDF(ctx context.Context, actor entity.Actor, scope string) ([]byte, error) {
	summary, scope, err := uc.queries.GetInventorySummary(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	in := ListInventoryInput{}
	if scope != domaininv.ScopeAll {
		in.SellerID = scope
	}
	items, err := uc.queries.listItems(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	return uc.generator.GenerateStockReport(ctx, StockReport{
		Scope:       scope,
		GeneratedAt: uc.now(),
		Summary:     summary,
		Items:       items,
	})
}
