package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Movements      *inventory.MovementUseCase
	Catalog        *inventory.CatalogUseCase
	Reconciliation *inventory.ReconciliationUseCase
	Queries        *inventory.QueryUseCase
	Reports        *inventory.ReportUseCase
	JWTSecret      string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (Bearer Token con rol admin o seller)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret), RequireRole(entity.RoleAdmin, entity.RoleSeller))

	// Products
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.Catalog, deps.Reconciliation)
	products.Post("/", productHandler.Create)
	products.Get("/:id/stock", productHandler.GetStock)
	products.Put("/:id/stock", productHandler.EditStock)
	products.Post("/:id/stock/reconcile", productHandler.Reconcile)
	products.Post("/:id/stock/verify", productHandler.Verify)

	// Inventory
	invGroup := protected.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Movements, deps.Catalog, deps.Queries, deps.Reports)
	invGroup.Get("/", inventoryHandler.List)
	invGroup.Get("/summary", inventoryHandler.GetSummary)
	invGroup.Get("/restock", inventoryHandler.GetRestockList)
	invGroup.Get("/report.pdf", inventoryHandler.ExportPDF)
	invGroup.Post("/movements", inventoryHandler.SubmitMovement)
	invGroup.Post("/movements/batch", inventoryHandler.SubmitBatch)
	invGroup.Post("/skus", inventoryHandler.RegisterSKU)
	invGroup.Get("/skus/:sku", inventoryHandler.GetSKU)
	invGroup.Delete("/skus/:sku", inventoryHandler.RetireSKU)
	invGroup.Put("/skus/:sku/threshold", inventoryHandler.SetThreshold)
	invGroup.Get("/skus/:sku/movements", inventoryHandler.ListMovements)
}
