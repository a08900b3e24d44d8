package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/domain"
)

// statusClientClosed el cliente abandonó la petición antes de la respuesta.
const statusClientClosed = 499

// errorStatus traduce un error de dominio a código HTTP y cuerpo de error. Los errores
// no reconocidos salen como INTERNAL sin detalle.
func errorStatus(err error) (int, dto.ErrorResponse) {
	var insufficient *domain.InsufficientStockError
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"}
	case errors.Is(err, domain.ErrUnknownSKU):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "UNKNOWN_SKU", Message: "sku no registrado"}
	case errors.Is(err, domain.ErrUnknownProduct):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "UNKNOWN_PRODUCT", Message: "producto no registrado"}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "no autorizado"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	case errors.As(err, &insufficient):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente"}
	case errors.Is(err, domain.ErrAmbiguousReconciliation):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "AMBIGUOUS_RECONCILIATION", Message: "el producto tiene varios SKU: edite el SKU directamente"}
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: "el SKU cambió durante la operación, reintente"}
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "DUPLICATE", Message: "el recurso ya existe"}
	case errors.Is(err, domain.ErrLockUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "LOCK_UNAVAILABLE", Message: "sku ocupado, reintente"}
	case errors.Is(err, context.Canceled):
		return statusClientClosed, dto.ErrorResponse{Code: "CANCELED", Message: "petición cancelada"}
	default:
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
	}
}

// respondError escribe la respuesta de error. Los 5xx se registran con el error completo.
func respondError(c *fiber.Ctx, err error) error {
	status, body := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("user_id", GetUserID(c)).
			Int("status", status).
			Msg("error en la petición")
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
