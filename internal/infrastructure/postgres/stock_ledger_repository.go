package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/repository"
)

var _ repository.StockLedgerRepository = (*StockLedgerRepo)(nil)

// StockLedgerRepo implementación de StockLedgerRepository sobre PostgreSQL (usable con pool o tx).
type StockLedgerRepo struct {
	q Querier
}

// NewStockLedgerRepository construye el adaptador del ledger. Pasar pool o tx (Querier).
func NewStockLedgerRepository(q Querier) *StockLedgerRepo {
	return &StockLedgerRepo{q: q}
}

const ledgerColumns = `sku, product_id, seller_id, available, reserved, low_stock_threshold, status, version, retired, created_at, updated_at`

func scanLedger(row pgx.Row) (*entity.StockLedger, error) {
	var l entity.StockLedger
	var status string
	if err := row.Scan(
		&l.SKU, &l.ProductID, &l.SellerID, &l.Available, &l.Reserved, &l.LowStockThreshold,
		&status, &l.Version, &l.Retired, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Status = entity.StockStatus(status)
	l.Total = l.Available + l.Reserved
	return &l, nil
}

// Create inserta el ledger de un SKU nuevo.
func (r *StockLedgerRepo) Create(ctx context.Context, l *entity.StockLedger) error {
	query := `
		INSERT INTO stock_ledgers (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		l.SKU, l.ProductID, l.SellerID, l.Available, l.Reserved, l.LowStockThreshold,
		string(l.Status), l.Version, l.Retired, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock ledger: %w", err)
	}
	return nil
}

// Get obtiene el ledger del SKU.
func (r *StockLedgerRepo) Get(ctx context.Context, sku string) (*entity.StockLedger, error) {
	return r.get(ctx, `SELECT `+ledgerColumns+` FROM stock_ledgers WHERE sku = $1`, sku)
}

// GetForUpdate obtiene el ledger y bloquea la fila para update (SELECT FOR UPDATE).
func (r *StockLedgerRepo) GetForUpdate(ctx context.Context, sku string) (*entity.StockLedger, error) {
	return r.get(ctx, `SELECT `+ledgerColumns+` FROM stock_ledgers WHERE sku = $1 FOR UPDATE`, sku)
}

func (r *StockLedgerRepo) get(ctx context.Context, query, sku string) (*entity.StockLedger, error) {
	l, err := scanLedger(r.q.QueryRow(ctx, query, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock ledger: %w", err)
	}
	return l, nil
}

// Update persiste cantidades, estado y umbral si la versión almacenada es la esperada.
func (r *StockLedgerRepo) Update(ctx context.Context, l *entity.StockLedger, expectedVersion int64) error {
	query := `
		UPDATE stock_ledgers
		SET available = $2, reserved = $3, low_stock_threshold = $4, status = $5,
		    version = $6, retired = $7, updated_at = $8
		WHERE sku = $1 AND version = $9`
	tag, err := r.q.Exec(ctx, query,
		l.SKU, l.Available, l.Reserved, l.LowStockThreshold, string(l.Status),
		l.Version, l.Retired, l.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update stock ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// ListByProduct lista los ledgers del producto (incluye retirados).
func (r *StockLedgerRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockLedger, error) {
	return r.List(ctx, repository.LedgerFilter{ProductID: productID, IncludeRetired: true})
}

// List lista ledgers aplicando los filtros no vacíos, ordenados por SKU.
func (r *StockLedgerRepo) List(ctx context.Context, f repository.LedgerFilter) ([]*entity.StockLedger, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.SKU != "" {
		add("sku = $%d", f.SKU)
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.IncludeRetired {
		where = append(where, "NOT retired")
	}

	query := `SELECT ` + ledgerColumns + ` FROM stock_ledgers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sku`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock ledgers: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.StockLedger, 0)
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock ledger: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Mark cuenta los ledgers y suma sus versiones (sum de bigint devuelve numeric).
func (r *StockLedgerRepo) Mark(ctx context.Context) (repository.LedgerMark, error) {
	var m repository.LedgerMark
	err := r.q.QueryRow(ctx,
		`SELECT count(*)::int, COALESCE(sum(version), 0)::bigint FROM stock_ledgers`,
	).Scan(&m.Count, &m.VersionSum)
	if err != nil {
		return m, fmt.Errorf("stock ledger mark: %w", err)
	}
	return m, nil
}
