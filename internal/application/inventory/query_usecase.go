package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/repository"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// ListInventoryInput filtros del listado de inventario.
type ListInventoryInput struct {
	Search         string // texto libre sobre SKU y nombre del producto (sin acentos ni mayúsculas)
	SKU            string
	Status         string
	SellerID       string // solo admin; el vendedor siempre ve lo suyo
	IncludeRetired bool
	Page           dto.PageRequest
}

// QueryUseCase responde consultas de lectura: resúmenes para tableros, listados y
// el historial de movimientos. Mantiene los resúmenes de forma incremental a partir
// de las notificaciones de ledger (LedgerObserver).
type QueryUseCase struct {
	txRunner TxRunner
	agg      *domaininv.Aggregator
	log      *logger.Logger

	mu     sync.RWMutex
	prices map[string]decimal.Decimal // product_id -> precio unitario

	rebuildMu sync.Mutex
	stale     atomic.Bool // hubo una notificación que no se pudo aplicar
}

var _ LedgerObserver = (*QueryUseCase)(nil)

// NewQueryUseCase construye el caso de uso. El agregador se inicializa en el primer
// resumen pedido o con RebuildSummaries.
func NewQueryUseCase(txRunner TxRunner, log *logger.Logger) *QueryUseCase {
	return &QueryUseCase{
		txRunner: txRunner,
		agg:      domaininv.NewAggregator(),
		log:      log.Component("queries"),
		prices:   make(map[string]decimal.Decimal),
	}
}

// LedgerChanged actualiza el aporte del SKU al resumen.
func (uc *QueryUseCase) LedgerChanged(ctx context.Context, l *entity.StockLedger) {
	price, err := uc.priceOf(ctx, l.ProductID)
	if err != nil {
		uc.log.Warn().Err(err).Str("sku", l.SKU).Msg("no se pudo valorizar el SKU; el resumen se reconstruirá")
		uc.stale.Store(true)
		return
	}
	uc.agg.Upsert(domaininv.EntryFor(l, price))
}

// RebuildSummaries recalcula todos los resúmenes desde los ledgers (arranque o cambio de precios).
func (uc *QueryUseCase) RebuildSummaries(ctx context.Context) error {
	uc.rebuildMu.Lock()
	defer uc.rebuildMu.Unlock()

	uc.stale.Store(false)
	entries, prices, err := uc.loadEntries(ctx)
	if err != nil {
		uc.stale.Store(true)
		return err
	}
	uc.mu.Lock()
	uc.prices = prices
	uc.mu.Unlock()
	uc.agg.Reset(entries)
	uc.log.Info().Int("skus", len(entries)).Msg("resúmenes de inventario reconstruidos")
	return nil
}

// GetInventorySummary devuelve el resumen del alcance: "all" (admin) o el id del vendedor.
// scope vacío es "all" para admin y el propio vendedor para seller.
func (uc *QueryUseCase) GetInventorySummary(ctx context.Context, actor entity.Actor, scope string) (domaininv.Summary, string, error) {
	scope, err := resolveScope(actor, scope)
	if err != nil {
		return domaininv.Summary{}, "", err
	}
	fresh, err := uc.inSync(ctx)
	if err != nil {
		return domaininv.Summary{}, "", err
	}
	if !fresh {
		if err := uc.RebuildSummaries(ctx); err != nil {
			return domaininv.Summary{}, "", err
		}
	}
	s, _ := uc.agg.Get(scope)
	return s, scope, nil
}

// inSync compara la marca del agregador con la del almacén. Otra instancia o el CLI de
// migración pueden haber escrito ledgers que este proceso no vio pasar.
func (uc *QueryUseCase) inSync(ctx context.Context) (bool, error) {
	if !uc.agg.Ready() || uc.stale.Load() {
		return false, nil
	}
	var mark repository.LedgerMark
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		var err error
		mark, err = repos.Ledgers.Mark(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	count, versionSum := uc.agg.Mark()
	if count == mark.Count && versionSum == mark.VersionSum {
		return true, nil
	}
	uc.log.Debug().
		Int("known_skus", count).Int("store_skus", mark.Count).
		Msg("resumen desactualizado respecto del almacén")
	return false, nil
}

// RefreshSKU relee el ledger y actualiza su aporte. Lo usa el consumidor de eventos
// para recoger los movimientos aplicados por otras instancias.
func (uc *QueryUseCase) RefreshSKU(ctx context.Context, sku string) error {
	var l *entity.StockLedger
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		var err error
		l, err = repos.Ledgers.Get(ctx, sku)
		return err
	})
	if err != nil {
		return err
	}
	if l == nil {
		return domain.ErrUnknownSKU
	}
	uc.LedgerChanged(ctx, l)
	return nil
}

// RecomputeSummary calcula el resumen desde cero leyendo los ledgers (modo batch).
func (uc *QueryUseCase) RecomputeSummary(ctx context.Context, actor entity.Actor, scope string) (domaininv.Summary, string, error) {
	scope, err := resolveScope(actor, scope)
	if err != nil {
		return domaininv.Summary{}, "", err
	}
	entries, _, err := uc.loadEntries(ctx)
	if err != nil {
		return domaininv.Summary{}, "", err
	}
	return domaininv.Recompute(entries, scope), scope, nil
}

// RecomputeFromLog reconstruye los ledgers aplicando el log completo de movimientos y
// calcula el resumen resultante. Debe coincidir con GetInventorySummary.
func (uc *QueryUseCase) RecomputeFromLog(ctx context.Context, actor entity.Actor, scope string) (domaininv.Summary, string, error) {
	scope, err := resolveScope(actor, scope)
	if err != nil {
		return domaininv.Summary{}, "", err
	}
	var entries []domaininv.SummaryEntry
	err = uc.txRunner.Run(ctx, func(repos Repositories) error {
		ledgers, err := repos.Ledgers.List(ctx, repository.LedgerFilter{IncludeRetired: true})
		if err != nil {
			return err
		}
		events, err := repos.Movements.ListAll(ctx)
		if err != nil {
			return err
		}
		base := make(map[string]*entity.StockLedger, len(ledgers))
		for _, l := range ledgers {
			base[l.SKU] = l
		}
		folded, err := domaininv.FoldEvents(base, events)
		if err != nil {
			return err
		}
		products, err := repos.Products.GetByIDs(ctx, productIDs(ledgers))
		if err != nil {
			return err
		}
		for _, l := range folded {
			entries = append(entries, domaininv.EntryFor(l, priceIn(products, l.ProductID)))
		}
		return nil
	})
	if err != nil {
		return domaininv.Summary{}, "", err
	}
	return domaininv.Recompute(entries, scope), scope, nil
}

// ListInventory lista los SKU visibles para el actor, unidos a los datos del producto.
func (uc *QueryUseCase) ListInventory(ctx context.Context, actor entity.Actor, in ListInventoryInput) (*dto.InventoryListResponse, error) {
	in.Page.DefaultPage()
	items, err := uc.listItems(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	total := len(items)
	start, end := in.Page.Window(total)
	return &dto.InventoryListResponse{
		Items: items[start:end],
		Page:  dto.PageResponse{Limit: in.Page.Limit, Offset: in.Page.Offset, Total: total},
	}, nil
}

// GetLedger devuelve el estado del SKU.
func (uc *QueryUseCase) GetLedger(ctx context.Context, actor entity.Actor, sku string) (*entity.StockLedger, error) {
	var ledger *entity.StockLedger
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		var err error
		ledger, err = authorizeSKU(ctx, repos, actor, sku)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// ListMovements devuelve el historial de movimientos aplicados al SKU (más recientes primero).
func (uc *QueryUseCase) ListMovements(ctx context.Context, actor entity.Actor, sku string, page dto.PageRequest) (*dto.MovementListResponse, error) {
	page.DefaultPage()
	var events []*entity.AppliedEvent
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		if _, err := authorizeSKU(ctx, repos, actor, sku); err != nil {
			return err
		}
		var err error
		events, err = repos.Movements.ListBySKU(ctx, sku, page.Limit, page.Offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*entity.AppliedEvent{}
	}
	return &dto.MovementListResponse{
		Items: events,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

func (uc *QueryUseCase) listItems(ctx context.Context, actor entity.Actor, in ListInventoryInput) ([]dto.InventoryItem, error) {
	filter := repository.LedgerFilter{
		SKU:            strings.TrimSpace(in.SKU),
		SellerID:       in.SellerID,
		IncludeRetired: in.IncludeRetired,
	}
	if !actor.IsAdmin() {
		if in.SellerID != "" && in.SellerID != actor.SellerID {
			return nil, domain.ErrForbidden
		}
		filter.SellerID = actor.SellerID
	}
	if in.Status != "" {
		filter.Status = entity.StockStatus(in.Status)
		if !filter.Status.Valid() {
			return nil, domain.NewValidationError("status", "debe ser in_stock, low_stock u out_of_stock")
		}
	}

	var ledgers []*entity.StockLedger
	var products map[string]*entity.Product
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		var err error
		if ledgers, err = repos.Ledgers.List(ctx, filter); err != nil {
			return err
		}
		products, err = repos.Products.GetByIDs(ctx, productIDs(ledgers))
		return err
	})
	if err != nil {
		return nil, err
	}

	search := foldText(strings.TrimSpace(in.Search))
	items := make([]dto.InventoryItem, 0, len(ledgers))
	for _, l := range ledgers {
		item := toInventoryItem(l, products[l.ProductID])
		if search != "" && !strings.Contains(foldText(item.SKU), search) && !strings.Contains(foldText(item.ProductName), search) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return items, nil
}

func (uc *QueryUseCase) loadEntries(ctx context.Context) ([]domaininv.SummaryEntry, map[string]decimal.Decimal, error) {
	var entries []domaininv.SummaryEntry
	prices := make(map[string]decimal.Decimal)
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		ledgers, err := repos.Ledgers.List(ctx, repository.LedgerFilter{IncludeRetired: true})
		if err != nil {
			return err
		}
		products, err := repos.Products.GetByIDs(ctx, productIDs(ledgers))
		if err != nil {
			return err
		}
		for id, p := range products {
			prices[id] = p.Price
		}
		entries = make([]domaininv.SummaryEntry, 0, len(ledgers))
		for _, l := range ledgers {
			entries = append(entries, domaininv.EntryFor(l, priceIn(products, l.ProductID)))
		}
		return nil
	})
	return entries, prices, err
}

func (uc *QueryUseCase) priceOf(ctx context.Context, productID string) (decimal.Decimal, error) {
	uc.mu.RLock()
	price, ok := uc.prices[productID]
	uc.mu.RUnlock()
	if ok {
		return price, nil
	}
	var product *entity.Product
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		var err error
		product, err = repos.Products.GetByID(ctx, productID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if product == nil {
		return decimal.Zero, domain.ErrUnknownProduct
	}
	uc.mu.Lock()
	uc.prices[productID] = product.Price
	uc.mu.Unlock()
	return product.Price, nil
}

func resolveScope(actor entity.Actor, scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if actor.IsAdmin() {
		if scope == "" {
			return domaininv.ScopeAll, nil
		}
		return scope, nil
	}
	if actor.Role != entity.RoleSeller || actor.SellerID == "" {
		return "", domain.ErrForbidden
	}
	if scope != "" && scope != actor.SellerID {
		return "", domain.ErrForbidden
	}
	return actor.SellerID, nil
}

func authorizeSKU(ctx context.Context, repos Repositories, actor entity.Actor, sku string) (*entity.StockLedger, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, domain.NewValidationError("sku", "requerido")
	}
	l, err := repos.Ledgers.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, domain.ErrUnknownSKU
	}
	if !actor.CanAccess(l.SellerID) {
		return nil, domain.ErrForbidden
	}
	return l, nil
}

func toInventoryItem(l *entity.StockLedger, p *entity.Product) dto.InventoryItem {
	item := dto.InventoryItem{
		SKU:               l.SKU,
		ProductID:         l.ProductID,
		SellerID:          l.SellerID,
		Available:         l.Available,
		Reserved:          l.Reserved,
		Total:             l.Total,
		LowStockThreshold: l.LowStockThreshold,
		Status:            l.Status,
		UnitPrice:         decimal.Zero,
		StockValue:        decimal.Zero,
		Retired:           l.Retired,
		UpdatedAt:         l.UpdatedAt,
	}
	if p != nil {
		item.ProductName = p.Name
		item.UnitPrice = p.Price
		item.StockValue = p.Price.Mul(decimal.NewFromInt(l.Available))
	}
	return item
}

func productIDs(ledgers []*entity.StockLedger) []string {
	seen := make(map[string]struct{}, len(ledgers))
	ids := make([]string, 0, len(ledgers))
	for _, l := range ledgers {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

func priceIn(products map[string]*entity.Product, productID string) decimal.Decimal {
	if p, ok := products[productID]; ok {
		return p.Price
	}
	return decimal.Zero
}

// foldText normaliza para búsqueda: minúsculas y sin marcas diacríticas ("Cañón" -> "canon").
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
