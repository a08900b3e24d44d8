package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/repository"
)

var _ repository.ProductSnapshotRepository = (*ProductSnapshotRepo)(nil)

// ProductSnapshotRepo vista simplificada de stock por producto sobre PostgreSQL.
type ProductSnapshotRepo struct {
	q Querier
}

// NewProductSnapshotRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductSnapshotRepository(q Querier) *ProductSnapshotRepo {
	return &ProductSnapshotRepo{q: q}
}

const snapshotColumns = `product_id, quantity, status, low_stock_threshold, policy, sku_count, needs_review, updated_at`

// Get obtiene la vista del producto.
func (r *ProductSnapshotRepo) Get(ctx context.Context, productID string) (*entity.ProductStockSnapshot, error) {
	return r.get(ctx, `SELECT `+snapshotColumns+` FROM product_stock_snapshots WHERE product_id = $1`, productID)
}

// GetForUpdate obtiene la vista y bloquea la fila (SELECT FOR UPDATE).
func (r *ProductSnapshotRepo) GetForUpdate(ctx context.Context, productID string) (*entity.ProductStockSnapshot, error) {
	return r.get(ctx, `SELECT `+snapshotColumns+` FROM product_stock_snapshots WHERE product_id = $1 FOR UPDATE`, productID)
}

func (r *ProductSnapshotRepo) get(ctx context.Context, query, productID string) (*entity.ProductStockSnapshot, error) {
	var s entity.ProductStockSnapshot
	var status, policy string
	err := r.q.QueryRow(ctx, query, productID).Scan(
		&s.ProductID, &s.Quantity, &status, &s.LowStockThreshold, &policy, &s.SKUCount, &s.NeedsReview, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product stock snapshot: %w", err)
	}
	s.Status = entity.StockStatus(status)
	s.Policy = entity.SnapshotPolicy(policy)
	return &s, nil
}

// Upsert inserta o reemplaza la vista del producto.
func (r *ProductSnapshotRepo) Upsert(ctx context.Context, s *entity.ProductStockSnapshot) error {
	query := `
		INSERT INTO product_stock_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, status = EXCLUDED.status,
		    low_stock_threshold = EXCLUDED.low_stock_threshold, policy = EXCLUDED.policy,
		    sku_count = EXCLUDED.sku_count, needs_review = EXCLUDED.needs_review,
		    updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		s.ProductID, s.Quantity, string(s.Status), s.LowStockThreshold, string(s.Policy),
		s.SKUCount, s.NeedsReview, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product stock snapshot: %w", err)
	}
	return nil
}
