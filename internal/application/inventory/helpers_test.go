package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/memory"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

var (
	admin   = entity.Actor{UserID: "u-admin", Role: entity.RoleAdmin}
	sellerA = entity.Actor{UserID: "u-a", SellerID: "seller-a", Role: entity.RoleSeller}
	sellerB = entity.Actor{UserID: "u-b", SellerID: "seller-b", Role: entity.RoleSeller}
)

// MockPublisher registra los eventos publicados.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev *entity.AppliedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type env struct {
	store     *memory.Store
	publisher *MockPublisher
	movements *inventory.MovementUseCase
	catalog   *inventory.CatalogUseCase
	recon     *inventory.ReconciliationUseCase
	queries   *inventory.QueryUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore()
	locker := memory.NewKeyedLocker()
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	reconciler := inventory.NewSnapshotReconciler()
	queries := inventory.NewQueryUseCase(store, log)
	movements := inventory.NewMovementUseCase(store, locker, pub, reconciler, log, queries)
	return &env{
		store:     store,
		publisher: pub,
		movements: movements,
		catalog:   inventory.NewCatalogUseCase(store, locker, reconciler, entity.DefaultLowStockThreshold, log, queries),
		recon:     inventory.NewReconciliationUseCase(store, locker, movements, reconciler, 0, log),
		queries:   queries,
	}
}

func (e *env) product(t *testing.T, id, seller, price string) {
	t.Helper()
	_, err := e.catalog.RegisterProduct(context.Background(), admin, dto.RegisterProductRequest{
		ID: id, SellerID: seller, Name: "Producto " + id, Price: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
}

func (e *env) sku(t *testing.T, sku, productID string) {
	t.Helper()
	_, err := e.catalog.RegisterSKU(context.Background(), admin, dto.RegisterSKURequest{SKU: sku, ProductID: productID})
	require.NoError(t, err)
}

func (e *env) submit(t *testing.T, id, sku string, typ entity.MovementType, q int64) *inventory.MovementResult {
	t.Helper()
	res, err := e.movements.SubmitMovement(context.Background(), admin, mv(id, sku, typ, q))
	require.NoError(t, err)
	return res
}

func mv(id, sku string, typ entity.MovementType, q int64) entity.StockMovement {
	return entity.StockMovement{MovementID: id, SKU: sku, Type: typ, Quantity: q}
}

func pageAll() dto.PageRequest {
	return dto.PageRequest{Limit: 100}
}

func dtoSKU(sku, productID string) dto.RegisterSKURequest {
	return dto.RegisterSKURequest{SKU: sku, ProductID: productID}
}
