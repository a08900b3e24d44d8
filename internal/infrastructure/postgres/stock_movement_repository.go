package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo log de movimientos aplicados sobre PostgreSQL (usable con pool o tx).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, movement_id, sku, product_id, seller_id, type, quantity, reason, before_state, after_state, sequence, applied_at, created_by`

func scanMovement(row pgx.Row) (*entity.AppliedEvent, error) {
	var ev entity.AppliedEvent
	var typ string
	var reason, createdBy *string
	var before, after []byte
	if err := row.Scan(
		&ev.ID, &ev.MovementID, &ev.SKU, &ev.ProductID, &ev.SellerID, &typ, &ev.Quantity, &reason,
		&before, &after, &ev.Sequence, &ev.AppliedAt, &createdBy,
	); err != nil {
		return nil, err
	}
	ev.Type = entity.MovementType(typ)
	if reason != nil {
		ev.Reason = *reason
	}
	if createdBy != nil {
		ev.CreatedBy = *createdBy
	}
	if err := json.Unmarshal(before, &ev.Before); err != nil {
		return nil, fmt.Errorf("decode before_state: %w", err)
	}
	if err := json.Unmarshal(after, &ev.After); err != nil {
		return nil, fmt.Errorf("decode after_state: %w", err)
	}
	return &ev, nil
}

// Append inserta el evento. movement_id es único: un duplicado devuelve domain.ErrDuplicate.
func (r *StockMovementRepo) Append(ctx context.Context, ev *entity.AppliedEvent) error {
	before, err := json.Marshal(ev.Before)
	if err != nil {
		return fmt.Errorf("encode before_state: %w", err)
	}
	after, err := json.Marshal(ev.After)
	if err != nil {
		return fmt.Errorf("encode after_state: %w", err)
	}
	var reason, createdBy *string
	if ev.Reason != "" {
		reason = &ev.Reason
	}
	if ev.CreatedBy != "" {
		createdBy = &ev.CreatedBy
	}
	query := `
		INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.q.Exec(ctx, query,
		ev.ID, ev.MovementID, ev.SKU, ev.ProductID, ev.SellerID, string(ev.Type), ev.Quantity, reason,
		before, after, ev.Sequence, ev.AppliedAt, createdBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// Get obtiene el evento por movement_id.
func (r *StockMovementRepo) Get(ctx context.Context, movementID string) (*entity.AppliedEvent, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE movement_id = $1`
	ev, err := scanMovement(r.q.QueryRow(ctx, query, movementID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock movement: %w", err)
	}
	return ev, nil
}

// ListBySKU lista los movimientos del SKU, más recientes primero.
func (r *StockMovementRepo) ListBySKU(ctx context.Context, sku string, limit, offset int) ([]*entity.AppliedEvent, error) {
	query := `
		SELECT ` + movementColumns + ` FROM stock_movements
		WHERE sku = $1
		ORDER BY sequence DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, sku, limit, offset)
}

// ListAll devuelve el log completo en orden de aplicación por SKU.
func (r *StockMovementRepo) ListAll(ctx context.Context) ([]*entity.AppliedEvent, error) {
	return r.list(ctx, `SELECT `+movementColumns+` FROM stock_movements ORDER BY sku, sequence`)
}

func (r *StockMovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.AppliedEvent, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.AppliedEvent, 0)
	for rows.Next() {
		ev, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
