package inventory_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/inventory"
)

func TestFoldEvents_ReconstruyeEstado(t *testing.T) {
	a := ledgerWith(t, "A", 0, 10)
	b := ledgerWith(t, "B", 0, 3)
	base := map[string]*entity.StockLedger{"A": a.Clone(), "B": b.Clone()}

	var events []*entity.AppliedEvent
	apply := func(l *entity.StockLedger, typ entity.MovementType, q int64) {
		ev, err := inventory.Process(l, entity.StockMovement{
			MovementID: fmt.Sprintf("m-%d", len(events)), SKU: l.SKU, Type: typ, Quantity: q,
			Timestamp: t0.Add(time.Duration(len(events)) * time.Second),
		}, t0)
		require.NoError(t, err)
		events = append(events, ev)
	}
	apply(a, entity.MovementAddition, 20)
	apply(b, entity.MovementAddition, 4)
	apply(a, entity.MovementSale, 7)
	apply(a, entity.MovementReserve, 5)
	apply(b, entity.MovementAdjustment, 1)
	apply(a, entity.MovementFulfill, 2)

	// El orden de entrada no importa: se ordena por SKU y Sequence.
	reversed := make([]*entity.AppliedEvent, len(events))
	for i, ev := range events {
		reversed[len(events)-1-i] = ev
	}

	folded, err := inventory.FoldEvents(base, reversed)
	require.NoError(t, err)
	assert.Equal(t, a.Available, folded["A"].Available)
	assert.Equal(t, a.Reserved, folded["A"].Reserved)
	assert.Equal(t, a.Status, folded["A"].Status)
	assert.Equal(t, b.Available, folded["B"].Available)
	assert.Equal(t, entity.StatusLowStock, folded["B"].Status)
}

func TestFoldEvents_LogInconsistente(t *testing.T) {
	base := map[string]*entity.StockLedger{"A": ledgerWith(t, "A", 0, 10)}
	ev := &entity.AppliedEvent{
		MovementID: "x", SKU: "A", Type: entity.MovementAddition, Quantity: 5,
		After: entity.LedgerSnapshot{Available: 6}, Sequence: 1, AppliedAt: t0,
	}
	_, err := inventory.FoldEvents(base, []*entity.AppliedEvent{ev})
	assert.Error(t, err)

	sale := &entity.AppliedEvent{MovementID: "y", SKU: "A", Type: entity.MovementSale, Quantity: 5, Sequence: 1, AppliedAt: t0}
	_, err = inventory.FoldEvents(base, []*entity.AppliedEvent{sale})
	assert.Error(t, err)
}
