package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/marketplace-stock/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/marketplace-stock/pkg/jwt"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// MockReportGenerator evita renderizar PDF reales en tests de handlers.
type MockReportGenerator struct {
	mock.Mock
}

func (m *MockReportGenerator) GenerateStockReport(ctx context.Context, r inventory.StockReport) ([]byte, error) {
	args := m.Called(ctx, r)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

type apiFixture struct {
	app    *fiber.App
	admin  string
	seller string
	other  string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore()
	locker := memory.NewKeyedLocker()
	reconciler := inventory.NewSnapshotReconciler()
	queries := inventory.NewQueryUseCase(store, log)
	movements := inventory.NewMovementUseCase(store, locker, inventory.NoopPublisher{}, reconciler, log, queries)
	gen := &MockReportGenerator{}
	gen.On("GenerateStockReport", mock.Anything, mock.Anything).Return([]byte("%PDF-1.4 test"), nil).Maybe()

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Movements:      movements,
		Catalog:        inventory.NewCatalogUseCase(store, locker, reconciler, entity.DefaultLowStockThreshold, log, queries),
		Reconciliation: inventory.NewReconciliationUseCase(store, locker, movements, reconciler, 0, log),
		Queries:        queries,
		Reports:        inventory.NewReportUseCase(queries, gen),
		JWTSecret:      testJWTSecret,
	})

	token := func(sellerID, role string) string {
		tok, err := pkgjwt.Generate(testJWTSecret, "u-"+role+sellerID, sellerID, role, testIssuer, testExpMin)
		require.NoError(t, err)
		return "Bearer " + tok
	}
	return &apiFixture{
		app:    app,
		admin:  token("", entity.RoleAdmin),
		seller: token("seller-a", entity.RoleSeller),
		other:  token("seller-b", entity.RoleSeller),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, auth string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// seed registra P1 (seller-a) con el SKU P1-U y 20 unidades.
func (f *apiFixture) seed(t *testing.T) {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/products", f.admin, map[string]any{
		"id": "P1", "seller_id": "seller-a", "name": "Cañón de Juguete", "price": "2.5",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	status, body = f.do(t, http.MethodPost, "/api/inventory/skus", f.seller, dto.RegisterSKURequest{SKU: "P1-U", ProductID: "P1"})
	require.Equal(t, http.StatusCreated, status, string(body))
	status, body = f.do(t, http.MethodPost, "/api/inventory/movements", f.seller, dto.RegisterMovementRequest{
		MovementID: "m-1", SKU: "P1-U", Type: "addition", Quantity: 20,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
}

func TestAPI_MovimientoIdempotente(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	status, body := f.do(t, http.MethodPost, "/api/inventory/movements", f.seller, dto.RegisterMovementRequest{
		MovementID: "m-1", SKU: "P1-U", Type: "addition", Quantity: 20,
	})
	assert.Equal(t, http.StatusOK, status)
	var res dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Replayed)
	assert.Equal(t, int64(20), res.Ledger.Available)
}

func TestAPI_ErroresDeDominio(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	cases := []struct {
		name   string
		auth   string
		req    dto.RegisterMovementRequest
		status int
		code   string
	}{
		{"stock insuficiente", f.seller, dto.RegisterMovementRequest{MovementID: "s1", SKU: "P1-U", Type: "sale", Quantity: 21}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"sku desconocido", f.seller, dto.RegisterMovementRequest{MovementID: "s2", SKU: "NOPE", Type: "sale", Quantity: 1}, http.StatusNotFound, "UNKNOWN_SKU"},
		{"tipo inválido", f.seller, dto.RegisterMovementRequest{MovementID: "s3", SKU: "P1-U", Type: "teleport", Quantity: 1}, http.StatusBadRequest, "VALIDATION"},
		{"otro vendedor", f.other, dto.RegisterMovementRequest{MovementID: "s4", SKU: "P1-U", Type: "sale", Quantity: 1}, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/api/inventory/movements", tc.auth, tc.req)
			assert.Equal(t, tc.status, status, string(body))
			assert.Contains(t, string(body), tc.code)
		})
	}

	// Nada cambió.
	status, body := f.do(t, http.MethodGet, "/api/inventory/skus/P1-U", f.admin, nil)
	require.Equal(t, http.StatusOK, status)
	var l dto.LedgerResponse
	require.NoError(t, json.Unmarshal(body, &l))
	assert.Equal(t, int64(20), l.Ledger.Available)
}

func TestAPI_SinToken(t *testing.T) {
	f := newAPI(t)
	status, _ := f.do(t, http.MethodGet, "/api/inventory/summary", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_Lote(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	status, body := f.do(t, http.MethodPost, "/api/inventory/movements/batch", f.seller, dto.BatchMovementRequest{
		Movements: []dto.RegisterMovementRequest{
			{MovementID: "b1", SKU: "P1-U", Type: "sale", Quantity: 5},
			{MovementID: "b2", SKU: "NOPE", Type: "sale", Quantity: 1},
			{MovementID: "b3", SKU: "P1-U", Type: "reserve", Quantity: 3},
		},
	})
	require.Equal(t, http.StatusMultiStatus, status, string(body))
	var items []dto.BatchItemResponse
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 3)
	assert.Equal(t, "b1", items[0].MovementID)
	assert.NotNil(t, items[0].Result)
	require.NotNil(t, items[1].Error)
	assert.Equal(t, "UNKNOWN_SKU", items[1].Error.Code)
	assert.NotNil(t, items[2].Result)

	status, _ = f.do(t, http.MethodPost, "/api/inventory/movements/batch", f.seller, dto.BatchMovementRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ResumenYModos(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	for _, path := range []string{
		"/api/inventory/summary",
		"/api/inventory/summary?mode=recompute",
		"/api/inventory/summary?mode=replay",
	} {
		status, body := f.do(t, http.MethodGet, path, f.admin, nil)
		require.Equal(t, http.StatusOK, status, path+": "+string(body))
		var sum dto.SummaryResponse
		require.NoError(t, json.Unmarshal(body, &sum))
		assert.Equal(t, "all", sum.Scope, path)
		assert.Equal(t, 1, sum.Total, path)
		assert.Equal(t, 1, sum.InStock, path)
		assert.Equal(t, "50", sum.TotalValue.String(), path)
	}

	status, _ := f.do(t, http.MethodGet, "/api/inventory/summary?mode=recompute", f.seller, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = f.do(t, http.MethodGet, "/api/inventory/summary?scope=seller-a", f.other, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = f.do(t, http.MethodGet, "/api/inventory/summary?mode=otro", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := f.do(t, http.MethodGet, "/api/inventory/summary", f.other, nil)
	require.Equal(t, http.StatusOK, status)
	var empty dto.SummaryResponse
	require.NoError(t, json.Unmarshal(body, &empty))
	assert.Equal(t, "seller-b", empty.Scope)
	assert.Zero(t, empty.Total)
}

func TestAPI_EditarStockDelProducto(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	qty := int64(4)
	status, body := f.do(t, http.MethodPut, "/api/products/P1/stock", f.seller, dto.EditStockRequest{Quantity: &qty, MovementID: "edit-1"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = f.do(t, http.MethodGet, "/api/products/P1/stock", f.seller, nil)
	require.Equal(t, http.StatusOK, status)
	var snap dto.ProductStockResponse
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, int64(4), snap.Quantity)
	assert.Equal(t, entity.StatusLowStock, snap.Status)

	// Valor heredado en "stock".
	status, body = f.do(t, http.MethodPut, "/api/products/P1/stock", f.seller, map[string]any{
		"stock": map[string]any{"quantity": 12, "status": "in_stock"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var mv dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &mv))
	assert.Equal(t, int64(12), mv.Ledger.Available)

	status, _ = f.do(t, http.MethodPut, "/api/products/P1/stock", f.seller, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	// Un segundo SKU vuelve ambigua la edición.
	status, _ = f.do(t, http.MethodPost, "/api/inventory/skus", f.seller, dto.RegisterSKURequest{SKU: "P1-V", ProductID: "P1"})
	require.Equal(t, http.StatusCreated, status)
	status, body = f.do(t, http.MethodPut, "/api/products/P1/stock", f.seller, dto.EditStockRequest{Quantity: &qty})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "AMBIGUOUS_RECONCILIATION")

	status, body = f.do(t, http.MethodPost, "/api/products/P1/stock/verify", f.admin, nil)
	require.Equal(t, http.StatusOK, status)
	var rec dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.False(t, rec.Diverged)
	assert.Equal(t, int64(12), rec.Computed.Quantity)
}

func TestAPI_ListadoYSKU(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	status, body := f.do(t, http.MethodGet, "/api/inventory?search=canon", f.seller, nil)
	require.Equal(t, http.StatusOK, status)
	var list dto.InventoryListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "P1-U", list.Items[0].SKU)

	status, body = f.do(t, http.MethodGet, "/api/inventory", f.other, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list.Items)

	threshold := int64(25)
	status, body = f.do(t, http.MethodPut, "/api/inventory/skus/P1-U/threshold", f.seller, dto.ThresholdRequest{LowStockThreshold: &threshold})
	require.Equal(t, http.StatusOK, status, string(body))
	var l dto.LedgerResponse
	require.NoError(t, json.Unmarshal(body, &l))
	assert.Equal(t, entity.StatusLowStock, l.Ledger.Status)

	status, body = f.do(t, http.MethodGet, "/api/inventory/restock", f.seller, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"P1-U"`)

	status, body = f.do(t, http.MethodGet, "/api/inventory/skus/P1-U/movements", f.seller, nil)
	require.Equal(t, http.StatusOK, status)
	var movs dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &movs))
	require.Len(t, movs.Items, 1)
	assert.Equal(t, "m-1", movs.Items[0].MovementID)

	status, _ = f.do(t, http.MethodDelete, "/api/inventory/skus/P1-U", f.seller, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, "/api/inventory/movements", f.seller, dto.RegisterMovementRequest{
		MovementID: "after-retire", SKU: "P1-U", Type: "addition", Quantity: 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ReportePDF(t *testing.T) {
	f := newAPI(t)
	f.seed(t)

	req := httptest.NewRequest(http.MethodGet, "/api/inventory/report.pdf", nil)
	req.Header.Set("Authorization", f.admin)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}
