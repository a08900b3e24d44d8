package inventory_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/inventory"
)

func TestRecompute_EstadisticasYValor(t *testing.T) {
	price := decimal.RequireFromString("2.50")
	entries := []inventory.SummaryEntry{
		{SKU: "a", SellerID: "s1", Available: 20, Status: entity.StatusInStock, UnitPrice: price},
		{SKU: "b", SellerID: "s1", Available: 3, Status: entity.StatusLowStock, UnitPrice: price},
		{SKU: "c", SellerID: "s2", Available: 0, Status: entity.StatusOutOfStock, UnitPrice: price},
		{SKU: "d", SellerID: "s2", Available: 99, Status: entity.StatusInStock, UnitPrice: price, Retired: true},
	}

	all := inventory.Recompute(entries, inventory.ScopeAll)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 1, all.InStock)
	assert.Equal(t, 1, all.LowStock)
	assert.Equal(t, 1, all.OutOfStock)
	assert.True(t, all.TotalValue.Equal(decimal.RequireFromString("57.5")), all.TotalValue.String())

	s1 := inventory.Recompute(entries, "s1")
	assert.Equal(t, 2, s1.Total)
	assert.Equal(t, 0, s1.OutOfStock)

	s3 := inventory.Recompute(entries, "s3")
	assert.True(t, s3.Equal(inventory.Summary{TotalValue: decimal.Zero}))
}

// Propiedad: el agregado incremental coincide con el recálculo completo.
func TestAggregator_IncrementalIgualABatch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prices := map[string]decimal.Decimal{}
	ledgers := map[string]*entity.StockLedger{}
	for i := 0; i < 12; i++ {
		sku := fmt.Sprintf("SKU-%02d", i)
		l, err := entity.NewStockLedger(sku, "P-"+sku, fmt.Sprintf("seller-%d", i%3), int64(rng.Intn(15)), t0)
		require.NoError(t, err)
		ledgers[sku] = l
		prices[sku] = decimal.New(int64(100+rng.Intn(900)), -2)
	}

	agg := inventory.NewAggregator()
	var initial []inventory.SummaryEntry
	for sku, l := range ledgers {
		initial = append(initial, inventory.EntryFor(l, prices[sku]))
	}
	agg.Reset(initial)

	types := []entity.MovementType{
		entity.MovementAddition, entity.MovementSale, entity.MovementReturn,
		entity.MovementDamage, entity.MovementAdjustment, entity.MovementReserve,
		entity.MovementRelease, entity.MovementFulfill,
	}
	for i := 0; i < 500; i++ {
		sku := fmt.Sprintf("SKU-%02d", rng.Intn(12))
		m := entity.StockMovement{
			MovementID: fmt.Sprintf("m-%d", i),
			SKU:        sku,
			Type:       types[rng.Intn(len(types))],
			Quantity:   int64(1 + rng.Intn(20)),
		}
		if _, err := inventory.Process(ledgers[sku], m, t0); err == nil {
			agg.Upsert(inventory.EntryFor(ledgers[sku], prices[sku]))
		}
		if i%97 == 0 {
			require.NoError(t, ledgers[sku].SetThreshold(int64(rng.Intn(20))))
			agg.Upsert(inventory.EntryFor(ledgers[sku], prices[sku]))
		}
	}

	var entries []inventory.SummaryEntry
	for sku, l := range ledgers {
		entries = append(entries, inventory.EntryFor(l, prices[sku]))
	}
	for _, scope := range []string{inventory.ScopeAll, "seller-0", "seller-1", "seller-2"} {
		inc, ready := agg.Get(scope)
		require.True(t, ready)
		batch := inventory.Recompute(entries, scope)
		assert.True(t, inc.Equal(batch), "scope %s: incremental=%+v batch=%+v", scope, inc, batch)
	}
}

func TestAggregator_IgnoraVersionesViejas(t *testing.T) {
	agg := inventory.NewAggregator()
	_, ready := agg.Get(inventory.ScopeAll)
	assert.False(t, ready)

	agg.Reset(nil)
	newer := inventory.SummaryEntry{SKU: "a", Available: 10, Status: entity.StatusInStock, UnitPrice: decimal.NewFromInt(1), Version: 5}
	older := inventory.SummaryEntry{SKU: "a", Available: 1, Status: entity.StatusLowStock, UnitPrice: decimal.NewFromInt(1), Version: 3}

	assert.True(t, agg.Upsert(newer))
	assert.False(t, agg.Upsert(older))

	// Un Reset con datos leídos antes del último Upsert no retrocede el estado.
	agg.Reset([]inventory.SummaryEntry{older})
	s, _ := agg.Get(inventory.ScopeAll)
	assert.Equal(t, 1, s.InStock)
	assert.True(t, s.TotalValue.Equal(decimal.NewFromInt(10)))
}

func TestAggregator_Concurrente(t *testing.T) {
	agg := inventory.NewAggregator()
	agg.Reset(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Upsert(inventory.SummaryEntry{
				SKU: fmt.Sprintf("s-%d", i), SellerID: "x", Available: 1,
				Status: entity.StatusLowStock, UnitPrice: decimal.NewFromInt(2), Version: 1,
			})
			_, _ = agg.Get("x")
		}(i)
	}
	wg.Wait()
	s, _ := agg.Get("x")
	assert.Equal(t, 50, s.Total)
	assert.True(t, s.TotalValue.Equal(decimal.NewFromInt(100)))
}
