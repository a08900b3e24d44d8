package inventory

import (
	"fmt"
	"sort"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// FoldEvents reconstruye los ledgers aplicando el log de movimientos desde cero.
// base aporta identidad, umbral y estado de retiro de cada SKU; las cantidades se
// recalculan. Los eventos de un SKU se aplican por Sequence, que es el orden real
// de serialización. Si el resultado de un paso no coincide con el After registrado
// el log es inconsistente y se devuelve error.
func FoldEvents(base map[string]*entity.StockLedger, events []*entity.AppliedEvent) (map[string]*entity.StockLedger, error) {
	sorted := make([]*entity.AppliedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SKU != sorted[j].SKU {
			return sorted[i].SKU < sorted[j].SKU
		}
		return sorted[i].Sequence < sorted[j].Sequence
	})

	out := make(map[string]*entity.StockLedger, len(base))
	for sku, l := range base {
		out[sku] = &entity.StockLedger{
			SKU:               sku,
			ProductID:         l.ProductID,
			SellerID:          l.SellerID,
			LowStockThreshold: l.LowStockThreshold,
			Status:            entity.DeriveStatus(0, l.LowStockThreshold),
			CreatedAt:         l.CreatedAt,
		}
	}

	for _, ev := range sorted {
		l, ok := out[ev.SKU]
		if !ok {
			l = &entity.StockLedger{
				SKU:               ev.SKU,
				ProductID:         ev.ProductID,
				SellerID:          ev.SellerID,
				LowStockThreshold: entity.DefaultLowStockThreshold,
				Status:            entity.StatusOutOfStock,
			}
			out[ev.SKU] = l
		}
		if _, err := Process(l, ev.Movement(), ev.AppliedAt); err != nil {
			return nil, fmt.Errorf("fold %s (%s): %w", ev.SKU, ev.MovementID, err)
		}
		if l.Available != ev.After.Available || l.Reserved != ev.After.Reserved {
			return nil, fmt.Errorf("fold %s (%s): log inconsistente: available=%d/%d reserved=%d/%d",
				ev.SKU, ev.MovementID, l.Available, ev.After.Available, l.Reserved, ev.After.Reserved)
		}
	}

	for sku, l := range base {
		out[sku].Retired = l.Retired
	}
	return out, nil
}
