package inventory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// ValidateMovement valida los campos del movimiento sin mirar el ledger.
func ValidateMovement(m entity.StockMovement) error {
	if strings.TrimSpace(m.MovementID) == "" {
		return domain.NewValidationError("movement_id", "requerido")
	}
	if strings.TrimSpace(m.SKU) == "" {
		return domain.NewValidationError("sku", "requerido")
	}
	if !m.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("tipo de movimiento desconocido %q", m.Type))
	}
	if m.Quantity < 0 {
		return domain.NewValidationError("quantity", "no puede ser negativa")
	}
	if m.Quantity == 0 && m.Type != entity.MovementAdjustment {
		return domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	return nil
}

// Deltas traduce el movimiento a variaciones de available y reserved.
//
//	addition, return: +q / 0      sale, damage: -q / 0
//	reserve: -q / +q              release: +q / -q
//	fulfill: 0 / -q               adjustment: q - available / 0
func Deltas(l *entity.StockLedger, m entity.StockMovement) (deltaAvailable, deltaReserved int64) {
	q := m.Quantity
	switch m.Type {
	case entity.MovementAddition, entity.MovementReturn:
		return q, 0
	case entity.MovementSale, entity.MovementDamage:
		return -q, 0
	case entity.MovementReserve:
		return -q, q
	case entity.MovementRelease:
		return q, -q
	case entity.MovementFulfill:
		return 0, -q
	case entity.MovementAdjustment:
		return q - l.Available, 0
	}
	return 0, 0
}

// Process valida y aplica el movimiento sobre el ledger. En caso de rechazo el ledger
// queda intacto. El evento devuelto no tiene ID; lo asigna quien lo persiste.
func Process(l *entity.StockLedger, m entity.StockMovement, now time.Time) (*entity.AppliedEvent, error) {
	if err := ValidateMovement(m); err != nil {
		return nil, err
	}
	if l.SKU != m.SKU {
		return nil, domain.NewValidationError("sku", "el movimiento no corresponde al ledger")
	}
	if l.Retired {
		return nil, domain.NewValidationError("sku", "el SKU está retirado")
	}

	before := l.Snapshot()
	dA, dR := Deltas(l, m)
	after, err := l.Apply(dA, dR)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt = now

	appliedAt := m.Timestamp
	if appliedAt.IsZero() {
		appliedAt = now
	}
	return &entity.AppliedEvent{
		MovementID: m.MovementID,
		SKU:        l.SKU,
		ProductID:  l.ProductID,
		SellerID:   l.SellerID,
		Type:       m.Type,
		Quantity:   m.Quantity,
		Reason:     m.Reason,
		Before:     before,
		After:      after,
		Sequence:   after.Version,
		AppliedAt:  appliedAt,
		CreatedBy:  m.CreatedBy,
	}, nil
}

// SortForApply ordena movimientos concurrentes: Timestamp, luego prioridad de tipo
// (salidas, entradas, ajustes) y por último MovementID para un orden total.
func SortForApply(ms []entity.StockMovement) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if pa, pb := a.Type.Priority(), b.Type.Priority(); pa != pb {
			return pa < pb
		}
		return a.MovementID < b.MovementID
	})
}
