// Package memory implementa los repositorios y el TxRunner en memoria (STORE_DRIVER=memory
// y tests). Una transacción toma el lock global del store y, si fn falla, restaura el
// estado previo.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/internal/domain/repository"
)

type state struct {
	ledgers   map[string]*entity.StockLedger
	movements map[string]*entity.AppliedEvent
	order     []string // movement_id en orden de inserción
	products  map[string]*entity.Product
	snapshots map[string]*entity.ProductStockSnapshot
}

func (s *state) clone() *state {
	return &state{
		ledgers:   maps.Clone(s.ledgers),
		movements: maps.Clone(s.movements),
		order:     append([]string(nil), s.order...),
		products:  maps.Clone(s.products),
		snapshots: maps.Clone(s.snapshots),
	}
}

// Store almacén en memoria. Los valores se guardan y devuelven como copias.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ inventory.TxRunner = (*Store)(nil)

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{st: &state{
		ledgers:   make(map[string]*entity.StockLedger),
		movements: make(map[string]*entity.AppliedEvent),
		products:  make(map[string]*entity.Product),
		snapshots: make(map[string]*entity.ProductStockSnapshot),
	}}
}

// Run ejecuta fn de forma serializada. Si fn devuelve error o panic, el estado vuelve al previo.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = backup
			panic(p)
		}
		if err != nil {
			s.st = backup
		}
	}()

	return fn(inventory.Repositories{
		Ledgers:   &ledgerRepo{s: s},
		Movements: &movementRepo{s: s},
		Products:  &productRepo{s: s},
		Snapshots: &snapshotRepo{s: s},
	})
}

type ledgerRepo struct{ s *Store }

var _ repository.StockLedgerRepository = (*ledgerRepo)(nil)

func (r *ledgerRepo) Create(_ context.Context, l *entity.StockLedger) error {
	if _, ok := r.s.st.ledgers[l.SKU]; ok {
		return domain.ErrDuplicate
	}
	r.s.st.ledgers[l.SKU] = l.Clone()
	return nil
}

func (r *ledgerRepo) Get(_ context.Context, sku string) (*entity.StockLedger, error) {
	l, ok := r.s.st.ledgers[sku]
	if !ok {
		return nil, nil
	}
	return l.Clone(), nil
}

func (r *ledgerRepo) GetForUpdate(ctx context.Context, sku string) (*entity.StockLedger, error) {
	return r.Get(ctx, sku)
}

func (r *ledgerRepo) Update(_ context.Context, l *entity.StockLedger, expectedVersion int64) error {
	cur, ok := r.s.st.ledgers[l.SKU]
	if !ok {
		return domain.ErrUnknownSKU
	}
	if cur.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	r.s.st.ledgers[l.SKU] = l.Clone()
	return nil
}

func (r *ledgerRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockLedger, error) {
	return r.List(ctx, repository.LedgerFilter{ProductID: productID, IncludeRetired: true})
}

func (r *ledgerRepo) List(_ context.Context, f repository.LedgerFilter) ([]*entity.StockLedger, error) {
	out := make([]*entity.StockLedger, 0)
	for _, l := range r.s.st.ledgers {
		switch {
		case f.SellerID != "" && l.SellerID != f.SellerID,
			f.SKU != "" && l.SKU != f.SKU,
			f.ProductID != "" && l.ProductID != f.ProductID,
			f.Status != "" && l.Status != f.Status,
			!f.IncludeRetired && l.Retired:
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *ledgerRepo) Mark(_ context.Context) (repository.LedgerMark, error) {
	var m repository.LedgerMark
	for _, l := range r.s.st.ledgers {
		m.Count++
		m.VersionSum += l.Version
	}
	return m, nil
}

type movementRepo struct{ s *Store }

var _ repository.StockMovementRepository = (*movementRepo)(nil)

func (r *movementRepo) Append(_ context.Context, ev *entity.AppliedEvent) error {
	if _, ok := r.s.st.movements[ev.MovementID]; ok {
		return domain.ErrDuplicate
	}
	c := *ev
	r.s.st.movements[ev.MovementID] = &c
	r.s.st.order = append(r.s.st.order, ev.MovementID)
	return nil
}

func (r *movementRepo) Get(_ context.Context, movementID string) (*entity.AppliedEvent, error) {
	ev, ok := r.s.st.movements[movementID]
	if !ok {
		return nil, nil
	}
	c := *ev
	return &c, nil
}

func (r *movementRepo) ListBySKU(_ context.Context, sku string, limit, offset int) ([]*entity.AppliedEvent, error) {
	var all []*entity.AppliedEvent
	for i := len(r.s.st.order) - 1; i >= 0; i-- {
		ev := r.s.st.movements[r.s.st.order[i]]
		if ev.SKU == sku {
			c := *ev
			all = append(all, &c)
		}
	}
	if offset >= len(all) {
		return []*entity.AppliedEvent{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *movementRepo) ListAll(_ context.Context) ([]*entity.AppliedEvent, error) {
	out := make([]*entity.AppliedEvent, 0, len(r.s.st.order))
	for _, id := range r.s.st.order {
		c := *r.s.st.movements[id]
		out = append(out, &c)
	}
	return out, nil
}

type productRepo struct{ s *Store }

var _ repository.ProductRepository = (*productRepo)(nil)

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	if _, ok := r.s.st.products[p.ID]; ok {
		return domain.ErrDuplicate
	}
	c := *p
	r.s.st.products[p.ID] = &c
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *productRepo) GetByIDs(_ context.Context, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.st.products[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

type snapshotRepo struct{ s *Store }

var _ repository.ProductSnapshotRepository = (*snapshotRepo)(nil)

func (r *snapshotRepo) Get(_ context.Context, productID string) (*entity.ProductStockSnapshot, error) {
	snap, ok := r.s.st.snapshots[productID]
	if !ok {
		return nil, nil
	}
	c := *snap
	return &c, nil
}

func (r *snapshotRepo) GetForUpdate(ctx context.Context, productID string) (*entity.ProductStockSnapshot, error) {
	return r.Get(ctx, productID)
}

func (r *snapshotRepo) Upsert(_ context.Context, snap *entity.ProductStockSnapshot) error {
	c := *snap
	r.s.st.snapshots[snap.ProductID] = &c
	return nil
}
