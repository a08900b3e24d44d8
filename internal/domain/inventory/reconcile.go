package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
)

// activeLedgers filtra los SKU retirados.
func activeLedgers(ledgers []*entity.StockLedger) []*entity.StockLedger {
	out := make([]*entity.StockLedger, 0, len(ledgers))
	for _, l := range ledgers {
		if !l.Retired {
			out = append(out, l)
		}
	}
	return out
}

// SnapshotQuantity suma las cantidades de los SKU activos según la política del producto.
// Si la suma desborda int64 devuelve ValidationError.
func SnapshotQuantity(policy entity.SnapshotPolicy, ledgers []*entity.StockLedger) (int64, error) {
	var q int64
	for _, l := range activeLedgers(ledgers) {
		n := l.Available
		if policy == entity.PolicyOnHand {
			n = l.Total
		}
		sum, ok := entity.AddQuantity(q, n)
		if !ok {
			return 0, domain.NewValidationError("quantity", "la suma de los SKU del producto desborda el máximo")
		}
		q = sum
	}
	return q, nil
}

// BuildSnapshot calcula la vista simplificada del producto a partir de sus ledgers.
// El estado es el del agregado: un producto con un SKU agotado y otro sano está in_stock.
func BuildSnapshot(product *entity.Product, ledgers []*entity.StockLedger, now time.Time) (*entity.ProductStockSnapshot, error) {
	policy := product.SnapshotPolicy
	if !policy.Valid() {
		policy = entity.PolicyAvailable
	}
	qty, err := SnapshotQuantity(policy, ledgers)
	if err != nil {
		return nil, err
	}
	return &entity.ProductStockSnapshot{
		ProductID:         product.ID,
		Quantity:          qty,
		Status:            entity.DeriveStatus(qty, product.LowStockThreshold),
		LowStockThreshold: product.LowStockThreshold,
		Policy:            policy,
		SKUCount:          len(activeLedgers(ledgers)),
		UpdatedAt:         now,
	}, nil
}

// AttributeEdit elige el SKU al que se imputa una edición manual de la vista simplificada.
// Sin SKU activo: ErrUnknownSKU. Con más de uno: ErrAmbiguousReconciliation.
func AttributeEdit(ledgers []*entity.StockLedger) (*entity.StockLedger, error) {
	active := activeLedgers(ledgers)
	switch len(active) {
	case 0:
		return nil, domain.ErrUnknownSKU
	case 1:
		return active[0], nil
	default:
		return nil, fmt.Errorf("%w (%d SKU activos)", domain.ErrAmbiguousReconciliation, len(active))
	}
}

// TargetAvailable convierte la cantidad editada en el valor absoluto de available
// para el ajuste implícito.
func TargetAvailable(policy entity.SnapshotPolicy, l *entity.StockLedger, quantity int64) (int64, error) {
	if quantity < 0 {
		return 0, domain.NewValidationError("quantity", "no puede ser negativa")
	}
	if policy != entity.PolicyOnHand {
		return quantity, nil
	}
	target := quantity - l.Reserved
	if target < 0 {
		return 0, domain.NewValidationError("quantity",
			fmt.Sprintf("menor que la cantidad reservada (%d)", l.Reserved))
	}
	return target, nil
}

// Diverges indica si la vista almacenada se aleja del agregado más que la tolerancia.
func Diverges(stored, computed *entity.ProductStockSnapshot, tolerance int64) bool {
	if stored == nil {
		return computed != nil && computed.SKUCount > 0
	}
	diff := stored.Quantity - computed.Quantity
	if diff < 0 {
		diff = -diff
	}
	return diff > tolerance
}

type legacyStock struct {
	Quantity          *int64 `json:"quantity"`
	Status            string `json:"status"`
	LowStockThreshold *int64 `json:"lowStockThreshold"`
}

// ParseLegacyQuantity acepta la representación heredada del stock de catálogo:
// un número simple o un objeto {quantity, status, lowStockThreshold}.
func ParseLegacyQuantity(raw []byte) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, domain.NewValidationError("stock", "vacío")
	}
	if raw[0] == '{' {
		var obj legacyStock
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, domain.NewValidationError("stock", "objeto inválido")
		}
		if obj.Quantity == nil {
			return 0, domain.NewValidationError("stock.quantity", "requerido")
		}
		if *obj.Quantity < 0 {
			return 0, domain.NewValidationError("stock.quantity", "no puede ser negativa")
		}
		return *obj.Quantity, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, domain.NewValidationError("stock", "no numérico")
	}
	q, err := n.Int64()
	if err != nil {
		return 0, domain.NewValidationError("stock", "debe ser entero")
	}
	if q < 0 {
		return 0, domain.NewValidationError("stock", "no puede ser negativa")
	}
	return q, nil
}
