package inventory

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// ScopeAll alcance de administración (todo el catálogo).
const ScopeAll = "all"

// Summary estadísticas agregadas para tableros.
type Summary struct {
	Total      int             `json:"total"`
	InStock    int             `json:"in_stock"`
	LowStock   int             `json:"low_stock"`
	OutOfStock int             `json:"out_of_stock"`
	TotalValue decimal.Decimal `json:"total_value"` // Σ available × precio unitario
}

// Equal compara dos resúmenes (decimal no es comparable con ==).
func (s Summary) Equal(o Summary) bool {
	return s.Total == o.Total && s.InStock == o.InStock && s.LowStock == o.LowStock &&
		s.OutOfStock == o.OutOfStock && s.TotalValue.Equal(o.TotalValue)
}

// SummaryEntry aporte de un SKU al resumen.
type SummaryEntry struct {
	SKU       string
	SellerID  string
	Available int64
	Status    entity.StockStatus
	UnitPrice decimal.Decimal
	Retired   bool
	Version   int64
}

// EntryFor construye el aporte de un ledger con el precio de su producto.
func EntryFor(l *entity.StockLedger, unitPrice decimal.Decimal) SummaryEntry {
	return SummaryEntry{
		SKU:       l.SKU,
		SellerID:  l.SellerID,
		Available: l.Available,
		Status:    l.Status,
		UnitPrice: unitPrice,
		Retired:   l.Retired,
		Version:   l.Version,
	}
}

func (s *Summary) add(e SummaryEntry, sign int) {
	if e.Retired {
		return
	}
	s.Total += sign
	switch e.Status {
	case entity.StatusInStock:
		s.InStock += sign
	case entity.StatusLowStock:
		s.LowStock += sign
	case entity.StatusOutOfStock:
		s.OutOfStock += sign
	}
	value := e.UnitPrice.Mul(decimal.NewFromInt(e.Available))
	if sign > 0 {
		s.TotalValue = s.TotalValue.Add(value)
	} else {
		s.TotalValue = s.TotalValue.Sub(value)
	}
}

func inScope(e SummaryEntry, scope string) bool {
	return scope == ScopeAll || e.SellerID == scope
}

// Recompute calcula el resumen completo de un alcance (modo batch).
func Recompute(entries []SummaryEntry, scope string) Summary {
	var s Summary
	for _, e := range entries {
		if inScope(e, scope) {
			s.add(e, 1)
		}
	}
	return s
}

// Aggregator mantiene los resúmenes de forma incremental por alcance ("all" y cada vendedor).
// Es seguro para uso concurrente. Las entradas con Version menor a la conocida se ignoran,
// así notificaciones fuera de orden no retroceden el estado.
type Aggregator struct {
	mu         sync.RWMutex
	entries    map[string]SummaryEntry
	scopes     map[string]*Summary
	versionSum int64
	ready      bool
}

// NewAggregator construye un agregador vacío (no listo hasta el primer Reset).
func NewAggregator() *Aggregator {
	return &Aggregator{
		entries: make(map[string]SummaryEntry),
		scopes:  make(map[string]*Summary),
	}
}

// Reset carga el estado completo. Las entradas ya conocidas con versión más nueva se conservan.
func (a *Aggregator) Reset(entries []SummaryEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := make(map[string]SummaryEntry, len(entries))
	for _, e := range entries {
		merged[e.SKU] = e
	}
	for sku, cur := range a.entries {
		if e, ok := merged[sku]; !ok || cur.Version > e.Version {
			merged[sku] = cur
		}
	}

	a.entries = merged
	a.scopes = make(map[string]*Summary)
	a.versionSum = 0
	for _, e := range merged {
		a.addLocked(e, 1)
		a.versionSum += e.Version
	}
	a.ready = true
}

// Upsert reemplaza el aporte del SKU. Devuelve false si la entrada es más vieja que la actual.
func (a *Aggregator) Upsert(e SummaryEntry) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cur, ok := a.entries[e.SKU]; ok {
		if cur.Version > e.Version {
			return false
		}
		a.addLocked(cur, -1)
		a.versionSum -= cur.Version
	}
	a.entries[e.SKU] = e
	a.addLocked(e, 1)
	a.versionSum += e.Version
	return true
}

// Mark devuelve cuántos SKU conoce el agregador y la suma de sus versiones. Si coincide
// con la marca del almacén, el agregador refleja todos los cambios confirmados.
func (a *Aggregator) Mark() (count int, versionSum int64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries), a.versionSum
}

// Get devuelve el resumen del alcance y si el agregador ya fue inicializado.
func (a *Aggregator) Get(scope string) (Summary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.scopes[scope]; ok {
		return *s, a.ready
	}
	return Summary{TotalValue: decimal.Zero}, a.ready
}

// Ready indica si hubo al menos un Reset.
func (a *Aggregator) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

func (a *Aggregator) addLocked(e SummaryEntry, sign int) {
	a.scope(ScopeAll).add(e, sign)
	if e.SellerID != "" {
		a.scope(e.SellerID).add(e, sign)
	}
}

func (a *Aggregator) scope(name string) *Summary {
	s, ok := a.scopes[name]
	if !ok {
		s = &Summary{TotalValue: decimal.Zero}
		a.scopes[name] = s
	}
	return s
}
