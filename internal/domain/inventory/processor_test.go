package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/inventory"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ledgerWith(t *testing.T, sku string, available, threshold int64) *entity.StockLedger {
	t.Helper()
	l, err := entity.NewStockLedger(sku, "P-"+sku, "S-1", threshold, t0)
	require.NoError(t, err)
	if available > 0 {
		_, err = l.Apply(available, 0)
		require.NoError(t, err)
	}
	return l
}

func mov(id string, sku string, typ entity.MovementType, q int64) entity.StockMovement {
	return entity.StockMovement{MovementID: id, SKU: sku, Type: typ, Quantity: q}
}

func TestProcess_VentaDejaStockBajo(t *testing.T) {
	l := ledgerWith(t, "A", 15, 10)

	ev, err := inventory.Process(l, mov("m1", "A", entity.MovementSale, 10), t0)
	require.NoError(t, err)

	assert.Equal(t, int64(5), l.Available)
	assert.Equal(t, int64(5), l.Total)
	assert.Equal(t, entity.StatusLowStock, l.Status)
	assert.Equal(t, int64(15), ev.Before.Available)
	assert.Equal(t, int64(5), ev.After.Available)
	assert.Equal(t, l.Version, ev.Sequence)
	assert.Equal(t, t0, ev.AppliedAt)
}

func TestProcess_VentaMayorAlDisponible(t *testing.T) {
	l := ledgerWith(t, "A", 15, 10)
	before := l.Snapshot()

	_, err := inventory.Process(l, mov("m1", "A", entity.MovementSale, 20), t0)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(20), ise.Requested)
	assert.Equal(t, before, l.Snapshot())
	assert.Equal(t, int64(15), l.Available)
}

func TestProcess_MermaMayorAlDisponible(t *testing.T) {
	l := ledgerWith(t, "A", 3, 10)
	_, err := inventory.Process(l, mov("m1", "A", entity.MovementDamage, 4), t0)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(3), l.Available)
}

func TestProcess_ReposicionDesdeAgotado(t *testing.T) {
	l := ledgerWith(t, "A", 0, 10)
	assert.Equal(t, entity.StatusOutOfStock, l.Status)

	_, err := inventory.Process(l, mov("m1", "A", entity.MovementAddition, 5), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), l.Available)
	assert.Equal(t, entity.StatusLowStock, l.Status)

	l2 := ledgerWith(t, "B", 0, 5)
	_, err = inventory.Process(l2, mov("m2", "B", entity.MovementAddition, 5), t0)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInStock, l2.Status)
}

func TestProcess_AjusteACeroIgnoraReservado(t *testing.T) {
	l := ledgerWith(t, "A", 30, 10)
	_, err := inventory.Process(l, mov("r1", "A", entity.MovementReserve, 8), t0)
	require.NoError(t, err)

	_, err = inventory.Process(l, mov("adj", "A", entity.MovementAdjustment, 0), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Available)
	assert.Equal(t, int64(8), l.Reserved)
	assert.Equal(t, int64(8), l.Total)
	assert.Equal(t, entity.StatusOutOfStock, l.Status)
}

func TestProcess_AjusteEsAbsoluto(t *testing.T) {
	l := ledgerWith(t, "A", 12, 10)
	_, err := inventory.Process(l, mov("adj", "A", entity.MovementAdjustment, 40), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(40), l.Available)
}

func TestProcess_DevolucionYReservas(t *testing.T) {
	l := ledgerWith(t, "A", 10, 10)

	_, err := inventory.Process(l, mov("r", "A", entity.MovementReserve, 4), t0)
	require.NoError(t, err)
	assert.Equal(t, entity.LedgerSnapshot{Available: 6, Reserved: 4, Total: 10, Status: entity.StatusLowStock, LowStockThreshold: 10, Version: l.Version}, l.Snapshot())

	_, err = inventory.Process(l, mov("rel", "A", entity.MovementRelease, 5), t0)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = inventory.Process(l, mov("f", "A", entity.MovementFulfill, 3), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Reserved)
	assert.Equal(t, int64(7), l.Total)

	_, err = inventory.Process(l, mov("ret", "A", entity.MovementReturn, 2), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), l.Available)
}

func TestProcess_Validaciones(t *testing.T) {
	l := ledgerWith(t, "A", 10, 10)
	cases := []entity.StockMovement{
		mov("", "A", entity.MovementSale, 1),
		mov("m", "", entity.MovementSale, 1),
		mov("m", "A", entity.MovementType("teleport"), 1),
		mov("m", "A", entity.MovementAddition, -1),
		mov("m", "A", entity.MovementAddition, 0),
		mov("m", "A", entity.MovementAdjustment, -3),
		mov("m", "B", entity.MovementAddition, 1),
	}
	for _, m := range cases {
		_, err := inventory.Process(l, m, t0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", m)
	}
	assert.Equal(t, int64(10), l.Available)

	l.Retired = true
	_, err := inventory.Process(l, mov("m", "A", entity.MovementAddition, 1), t0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSortForApply_Desempate(t *testing.T) {
	later := t0.Add(time.Second)
	ms := []entity.StockMovement{
		{MovementID: "adj", Type: entity.MovementAdjustment, Timestamp: t0},
		{MovementID: "add", Type: entity.MovementAddition, Timestamp: t0},
		{MovementID: "late", Type: entity.MovementSale, Timestamp: later},
		{MovementID: "sale", Type: entity.MovementSale, Timestamp: t0},
		{MovementID: "dmg", Type: entity.MovementDamage, Timestamp: t0},
		{MovementID: "ret", Type: entity.MovementReturn, Timestamp: t0},
	}
	inventory.SortForApply(ms)

	var ids []string
	for _, m := range ms {
		ids = append(ids, m.MovementID)
	}
	assert.Equal(t, []string{"dmg", "sale", "add", "ret", "adj", "late"}, ids)
}
