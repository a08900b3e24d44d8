package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// RestockList devuelve los SKU activos en low_stock u out_of_stock con la cantidad
// sugerida para volver a 1.5 veces su umbral. Orden: agotados primero, luego mayor
// déficit relativo al umbral, luego SKU.
func (uc *QueryUseCase) RestockList(ctx context.Context, actor entity.Actor, sellerID string) ([]dto.RestockSuggestion, error) {
	items, err := uc.listItems(ctx, actor, ListInventoryInput{SellerID: sellerID})
	if err != nil {
		return nil, err
	}

	out := make([]dto.RestockSuggestion, 0)
	for _, it := range items {
		if it.Status == entity.StatusInStock {
			continue
		}
		ideal := (it.LowStockThreshold*3 + 1) / 2
		if ideal <= it.Available {
			ideal = it.Available + 1
		}
		suggested := ideal - it.Available
		out = append(out, dto.RestockSuggestion{
			SKU:            it.SKU,
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			SellerID:       it.SellerID,
			Available:      it.Available,
			Reserved:       it.Reserved,
			Threshold:      it.LowStockThreshold,
			Status:         it.Status,
			IdealStock:     ideal,
			SuggestedQty:   suggested,
			EstimatedValue: it.UnitPrice.Mul(decimal.NewFromInt(suggested)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Status == entity.StatusOutOfStock) != (b.Status == entity.StatusOutOfStock) {
			return a.Status == entity.StatusOutOfStock
		}
		// déficit relativo: (threshold-available)/threshold, comparado sin divisiones
		da := (a.Threshold - a.Available) * max(b.Threshold, 1)
		db := (b.Threshold - b.Available) * max(a.Threshold, 1)
		if da != db {
			return da > db
		}
		return a.SKU < b.SKU
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}
