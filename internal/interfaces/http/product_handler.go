package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
)

// ProductHandler maneja el registro de productos y su vista simplificada de stock (protegido).
type ProductHandler struct {
	catalog *inventory.CatalogUseCase
	recon   *inventory.ReconciliationUseCase
}

// NewProductHandler construye el handler.
func NewProductHandler(catalog *inventory.CatalogUseCase, recon *inventory.ReconciliationUseCase) *ProductHandler {
	return &ProductHandler{catalog: catalog, recon: recon}
}

// Create godoc
// @Summary      Registrar producto
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterProductRequest  true  "Datos del producto"
// @Success      201   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/products [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in dto.RegisterProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	p, err := h.catalog.RegisterProduct(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToProductResponse(p))
}

// GetStock godoc
// @Summary      Vista simplificada del stock del producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductStockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/stock [get]
func (h *ProductHandler) GetStock(c *fiber.Ctx) error {
	snap, err := h.recon.GetProductSnapshot(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToProductStockResponse(snap))
}

// EditStock godoc
// @Summary      Editar el stock del producto
// @Description  Se traduce a un ajuste sobre el único SKU activo del producto.
//
//	Acepta "quantity" o el valor heredado en "stock" (número, texto o {"quantity": n}).
//
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID del producto"
// @Param        body  body  dto.EditStockRequest true  "quantity o stock"
// @Success      200   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/products/{id}/stock [put]
func (h *ProductHandler) EditStock(c *fiber.Ctx) error {
	var in dto.EditStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	var (
		res *inventory.MovementResult
		err error
	)
	switch {
	case in.Quantity != nil:
		res, err = h.recon.EditSnapshot(c.UserContext(), actorFrom(c), c.Params("id"), *in.Quantity, in.MovementID)
	case len(in.Stock) > 0:
		res, err = h.recon.MigrateLegacyQuantity(c.UserContext(), actorFrom(c), c.Params("id"), in.Stock)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "quantity o stock es requerido"})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToMovementResponse(res.Event, res.Replayed))
}

// Reconcile godoc
// @Summary      Reconciliar la vista del producto con sus ledgers
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ReconcileResponse
// @Router       /api/products/{id}/stock/reconcile [post]
func (h *ProductHandler) Reconcile(c *fiber.Ctx) error {
	res, err := h.recon.Reconcile(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReconcileResponse(res))
}

// Verify godoc
// @Summary      Verificar la vista del producto sin corregirla
// @Description  Si diverge se marca needs_review y se registra en el log.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ReconcileResponse
// @Router       /api/products/{id}/stock/verify [post]
func (h *ProductHandler) Verify(c *fiber.Ctx) error {
	res, err := h.recon.Verify(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReconcileResponse(res))
}

func toReconcileResponse(r *inventory.ReconcileResult) dto.ReconcileResponse {
	return dto.ReconcileResponse{
		ProductID: r.ProductID,
		Diverged:  r.Diverged,
		Stored:    dto.ToProductStockResponse(r.Stored),
		Computed:  dto.ToProductStockResponse(r.Computed),
	}
}
