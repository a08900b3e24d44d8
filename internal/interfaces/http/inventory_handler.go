package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
)

// maxBatchSize límite de movimientos por lote.
const maxBatchSize = 500

// InventoryHandler maneja las peticiones HTTP de movimientos, SKU y consultas de inventario (protegido).
type InventoryHandler struct {
	movements *inventory.MovementUseCase
	catalog   *inventory.CatalogUseCase
	queries   *inventory.QueryUseCase
	reports   *inventory.ReportUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(
	movements *inventory.MovementUseCase,
	catalog *inventory.CatalogUseCase,
	queries *inventory.QueryUseCase,
	reports *inventory.ReportUseCase,
) *InventoryHandler {
	return &InventoryHandler{movements: movements, catalog: catalog, queries: queries, reports: reports}
}

// SubmitMovement godoc
// @Summary      Registrar movimiento de stock
// @Description  Idempotente por movement_id: repetirlo devuelve el resultado original con replayed=true.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "movement_id, sku, type, quantity"
// @Success      201   {object}  dto.MovementResponse
// @Success      200   {object}  dto.MovementResponse  "repetición idempotente"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) SubmitMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.movements.SubmitMovement(c.UserContext(), actorFrom(c), toMovement(in))
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusCreated
	if res.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.ToMovementResponse(res.Event, res.Replayed))
}

// SubmitBatch godoc
// @Summary      Registrar lote de movimientos
// @Description  Cada movimiento se aplica por separado; los del mismo SKU en orden de timestamp.
//
//	El resultado conserva el orden de entrada.
//
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.BatchMovementRequest  true  "movements"
// @Success      207   {array}   dto.BatchItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements/batch [post]
func (h *InventoryHandler) SubmitBatch(c *fiber.Ctx) error {
	var in dto.BatchMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if len(in.Movements) == 0 || len(in.Movements) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:    "VALIDATION",
			Message: fmt.Sprintf("el lote debe tener entre 1 y %d movimientos", maxBatchSize),
		})
	}
	ms := make([]entity.StockMovement, len(in.Movements))
	for i, r := range in.Movements {
		ms[i] = toMovement(r)
	}
	results := h.movements.SubmitBatch(c.UserContext(), actorFrom(c), ms)
	out := make([]dto.BatchItemResponse, len(results))
	for i, r := range results {
		item := dto.BatchItemResponse{MovementID: r.Movement.MovementID, SKU: r.Movement.SKU}
		if r.Err != nil {
			_, body := errorStatus(r.Err)
			item.Error = &body
		} else {
			item.Result = dto.ToMovementResponse(r.Result.Event, r.Result.Replayed)
		}
		out[i] = item
	}
	return c.Status(fiber.StatusMultiStatus).JSON(out)
}

// GetSummary godoc
// @Summary      Resumen de inventario para tableros
// @Description  scope: vacío = propio (vendedor) o "all" (admin). mode=recompute|replay solo admin.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        scope  query  string  false  "all o seller_id"
// @Param        mode   query  string  false  "incremental (defecto) | recompute | replay"
// @Success      200  {object}  dto.SummaryResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/inventory/summary [get]
func (h *InventoryHandler) GetSummary(c *fiber.Ctx) error {
	actor := actorFrom(c)
	scopeIn := c.Query("scope")
	var (
		sum   domaininv.Summary
		scope string
		err   error
	)
	switch mode := strings.ToLower(c.Query("mode")); mode {
	case "", "incremental":
		sum, scope, err = h.queries.GetInventorySummary(c.UserContext(), actor, scopeIn)
	case "recompute", "replay":
		if !actor.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "mode solo disponible para admin"})
		}
		if mode == "recompute" {
			sum, scope, err = h.queries.RecomputeSummary(c.UserContext(), actor, scopeIn)
		} else {
			sum, scope, err = h.queries.RecomputeFromLog(c.UserContext(), actor, scopeIn)
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "mode inválido"})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SummaryResponse{
		Scope:      scope,
		Total:      sum.Total,
		InStock:    sum.InStock,
		LowStock:   sum.LowStock,
		OutOfStock: sum.OutOfStock,
		TotalValue: sum.TotalValue,
	})
}

// List godoc
// @Summary      Listar inventario
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        search           query  string  false  "Texto libre sobre SKU y nombre (sin acentos)"
// @Param        sku              query  string  false  "SKU exacto"
// @Param        status           query  string  false  "in_stock | low_stock | out_of_stock"
// @Param        seller_id        query  string  false  "Solo admin"
// @Param        include_retired  query  bool    false  "Incluir SKU retirados"
// @Param        limit            query  int     false  "Límite"  default(20)
// @Param        offset           query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.InventoryListResponse
// @Router       /api/inventory [get]
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	in := inventory.ListInventoryInput{
		Search:         c.Query("search"),
		SKU:            c.Query("sku"),
		Status:         c.Query("status"),
		SellerID:       c.Query("seller_id"),
		IncludeRetired: c.QueryBool("include_retired", false),
		Page:           pageFrom(c),
	}
	out, err := h.queries.ListInventory(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// GetRestockList godoc
// @Summary      Lista de reposición
// @Description  SKU en low_stock u out_of_stock con la cantidad sugerida para volver al stock ideal.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        seller_id  query  string  false  "Solo admin"
// @Success      200  {array}   dto.RestockSuggestion
// @Router       /api/inventory/restock [get]
func (h *InventoryHandler) GetRestockList(c *fiber.Ctx) error {
	list, err := h.queries.RestockList(c.UserContext(), actorFrom(c), c.Query("seller_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"total":    len(list),
		"restocks": list,
	})
}

// ExportPDF godoc
// @Summary      Reporte de inventario en PDF
// @Tags         inventory
// @Security     Bearer
// @Produce      application/pdf
// @Param        scope  query  string  false  "all o seller_id"
// @Success      200  {file}  binary
// @Router       /api/inventory/report.pdf [get]
func (h *InventoryHandler) ExportPDF(c *fiber.Ctx) error {
	pdf, err := h.reports.ExportInventoryPDF(c.UserContext(), actorFrom(c), c.Query("scope"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="inventario-%s.pdf"`, time.Now().Format("20060102")))
	return c.Send(pdf)
}

// RegisterSKU godoc
// @Summary      Registrar SKU
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterSKURequest  true  "sku, product_id, low_stock_threshold"
// @Success      201   {object}  dto.LedgerResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/skus [post]
func (h *InventoryHandler) RegisterSKU(c *fiber.Ctx) error {
	var in dto.RegisterSKURequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	l, err := h.catalog.RegisterSKU(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToLedgerResponse(l))
}

// GetSKU godoc
// @Summary      Estado del ledger de un SKU
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        sku  path  string  true  "SKU"
// @Success      200  {object}  dto.LedgerResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/skus/{sku} [get]
func (h *InventoryHandler) GetSKU(c *fiber.Ctx) error {
	l, err := h.queries.GetLedger(c.UserContext(), actorFrom(c), c.Params("sku"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToLedgerResponse(l))
}

// RetireSKU godoc
// @Summary      Retirar SKU
// @Description  El SKU deja de aceptar movimientos y de contar en resúmenes; su historial se conserva.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        sku  path  string  true  "SKU"
// @Success      200  {object}  dto.LedgerResponse
// @Router       /api/inventory/skus/{sku} [delete]
func (h *InventoryHandler) RetireSKU(c *fiber.Ctx) error {
	l, err := h.catalog.RetireSKU(c.UserContext(), actorFrom(c), c.Params("sku"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToLedgerResponse(l))
}

// SetThreshold godoc
// @Summary      Cambiar umbral de stock bajo
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        sku   path  string                true  "SKU"
// @Param        body  body  dto.ThresholdRequest  true  "low_stock_threshold"
// @Success      200   {object}  dto.LedgerResponse
// @Router       /api/inventory/skus/{sku}/threshold [put]
func (h *InventoryHandler) SetThreshold(c *fiber.Ctx) error {
	var in dto.ThresholdRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.LowStockThreshold == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "low_stock_threshold es requerido"})
	}
	l, err := h.catalog.SetThreshold(c.UserContext(), actorFrom(c), c.Params("sku"), *in.LowStockThreshold)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToLedgerResponse(l))
}

// ListMovements godoc
// @Summary      Historial de movimientos de un SKU
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        sku     path   string  true   "SKU"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.MovementListResponse
// @Router       /api/inventory/skus/{sku}/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	out, err := h.queries.ListMovements(c.UserContext(), actorFrom(c), c.Params("sku"), pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

func toMovement(r dto.RegisterMovementRequest) entity.StockMovement {
	m := entity.StockMovement{
		MovementID: strings.TrimSpace(r.MovementID),
		SKU:        strings.TrimSpace(r.SKU),
		Type:       entity.MovementType(strings.ToLower(strings.TrimSpace(r.Type))),
		Quantity:   r.Quantity,
		Reason:     r.Reason,
	}
	if r.Timestamp != nil {
		m.Timestamp = r.Timestamp.UTC()
	}
	return m
}

func pageFrom(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	p.DefaultPage()
	return p
}
