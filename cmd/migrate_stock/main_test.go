package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/memory"
	"github.com/jhoicas/marketplace-stock/pkg/config"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

func TestParseExport(t *testing.T) {
	in := strings.Join([]string{
		"# exportación",
		"P1;12",
		"",
		`P2;{"quantity": 3, "status": "low_stock"}`,
		"P3",
		"P4;-1",
		"P1;5",
		`P5;"7"`,
	}, "\n")

	rows, bad, err := parseExport(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "P1", rows[0].ProductID)
	assert.Equal(t, "P2", rows[1].ProductID)
	assert.Equal(t, `"7"`, string(rows[2].Raw))

	require.Len(t, bad, 3)
	assert.Equal(t, 5, bad[0].Line)
	assert.Equal(t, 6, bad[1].Line)
	assert.Contains(t, bad[2].Reason, "repetido")
}

func TestParseExport_Latin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String("CAÑA-01;4\n")
	require.NoError(t, err)

	r := transform.NewReader(bytes.NewReader([]byte(encoded)), charmap.ISO8859_1.NewDecoder())
	rows, bad, err := parseExport(r)
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, rows, 1)
	assert.Equal(t, "CAÑA-01", rows[0].ProductID)
}

func TestMigrate_Idempotente(t *testing.T) {
	ctx := context.Background()
	log := logger.Nop()
	store := memory.NewStore()
	locker := memory.NewKeyedLocker()
	reconciler := inventory.NewSnapshotReconciler()
	movements := inventory.NewMovementUseCase(store, locker, inventory.NoopPublisher{}, reconciler, log)
	catalog := inventory.NewCatalogUseCase(store, locker, reconciler, entity.DefaultLowStockThreshold, log)
	recon := inventory.NewReconciliationUseCase(store, locker, movements, reconciler, 0, log)

	admin := entity.Actor{UserID: "u", Role: entity.RoleAdmin}
	for _, p := range []string{"P1", "P2"} {
		_, err := catalog.RegisterProduct(ctx, admin, dto.RegisterProductRequest{ID: p, SellerID: "s", Name: p, Price: decimal.NewFromInt(1)})
		require.NoError(t, err)
		_, err = catalog.RegisterSKU(ctx, admin, dto.RegisterSKURequest{SKU: p + "-A", ProductID: p})
		require.NoError(t, err)
	}
	_, err := catalog.RegisterSKU(ctx, admin, dto.RegisterSKURequest{SKU: "P2-B", ProductID: "P2"})
	require.NoError(t, err)

	rows, _, err := parseExport(strings.NewReader("P1;9\nP2;4\nP9;1\n"))
	require.NoError(t, err)

	st := migrate(ctx, recon, rows, log)
	assert.Equal(t, migrateStats{applied: 1, failed: 2}, st)

	st = migrate(ctx, recon, rows, log)
	assert.Equal(t, migrateStats{replayed: 1, failed: 2}, st)

	snap, err := recon.GetProductSnapshot(ctx, admin, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), snap.Quantity)
}

func TestNewLocker(t *testing.T) {
	log := logger.Nop()

	l, closeLocker, err := newLocker(context.Background(), config.RedisConfig{}, log)
	require.NoError(t, err)
	defer closeLocker()
	assert.IsType(t, &memory.KeyedLocker{}, l)

	// Con Redis configurado e inalcanzable no se cae al lock en memoria.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	l, _, err = newLocker(ctx, config.RedisConfig{
		Addrs:    []string{"127.0.0.1:1"},
		LockTTL:  time.Second,
		LockWait: time.Second,
	}, log)
	assert.Error(t, err)
	assert.Nil(t, l)
}
