package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jhoicas/marketplace-stock/internal/application/dto"
	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// CatalogUseCase registra productos y SKU y administra su ciclo de vida (umbral, retiro).
type CatalogUseCase struct {
	txRunner         TxRunner
	locker           SKULocker
	reconciler       *SnapshotReconciler
	observers        []LedgerObserver
	defaultThreshold int64
	log              *logger.Logger
	now              func() time.Time
}

// NewCatalogUseCase construye el caso de uso. defaultThreshold se usa cuando el request no trae umbral.
func NewCatalogUseCase(
	txRunner TxRunner,
	locker SKULocker,
	reconciler *SnapshotReconciler,
	defaultThreshold int64,
	log *logger.Logger,
	observers ...LedgerObserver,
) *CatalogUseCase {
	if defaultThreshold < 0 {
		defaultThreshold = entity.DefaultLowStockThreshold
	}
	return &CatalogUseCase{
		txRunner:         txRunner,
		locker:           locker,
		reconciler:       reconciler,
		observers:        observers,
		defaultThreshold: defaultThreshold,
		log:              log.Component("catalog"),
		now:              time.Now,
	}
}

// RegisterProduct registra los metadatos del producto y su vista de stock vacía.
// Un vendedor solo puede registrar productos propios.
func (uc *CatalogUseCase) RegisterProduct(ctx context.Context, actor entity.Actor, in dto.RegisterProductRequest) (*entity.Product, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return nil, domain.NewValidationError("id", "requerido")
	}
	if in.Name == "" {
		return nil, domain.NewValidationError("name", "requerido")
	}
	if in.Price.IsNegative() {
		return nil, domain.NewValidationError("price", "no puede ser negativo")
	}
	sellerID := in.SellerID
	if !actor.IsAdmin() {
		if sellerID != "" && sellerID != actor.SellerID {
			return nil, domain.ErrForbidden
		}
		sellerID = actor.SellerID
	}
	if sellerID == "" {
		return nil, domain.NewValidationError("seller_id", "requerido")
	}
	policy := entity.PolicyAvailable
	if in.SnapshotPolicy != "" {
		policy = entity.SnapshotPolicy(in.SnapshotPolicy)
		if !policy.Valid() {
			return nil, domain.NewValidationError("snapshot_policy", "debe ser available u on_hand")
		}
	}
	threshold, err := uc.threshold(in.LowStockThreshold)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	product := &entity.Product{
		ID:                in.ID,
		SellerID:          sellerID,
		Name:              in.Name,
		Price:             in.Price,
		SnapshotPolicy:    policy,
		LowStockThreshold: threshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = uc.txRunner.Run(ctx, func(repos Repositories) error {
		if err := repos.Products.Create(ctx, product); err != nil {
			return err
		}
		_, err := uc.reconciler.ReconcileInTx(ctx, repos, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("product_id", product.ID).Str("seller_id", sellerID).Msg("producto registrado")
	return product, nil
}

// RegisterSKU crea el ledger vacío (out_of_stock) de un SKU nuevo del producto.
func (uc *CatalogUseCase) RegisterSKU(ctx context.Context, actor entity.Actor, in dto.RegisterSKURequest) (*entity.StockLedger, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU == "" {
		return nil, domain.NewValidationError("sku", "requerido")
	}
	threshold, err := uc.threshold(in.LowStockThreshold)
	if err != nil {
		return nil, err
	}

	unlock, err := uc.locker.Lock(ctx, in.SKU)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ledger *entity.StockLedger
	err = uc.txRunner.Run(ctx, func(repos Repositories) error {
		product, err := authorizeProduct(ctx, repos, actor, in.ProductID)
		if err != nil {
			return err
		}
		existing, err := repos.Ledgers.Get(ctx, in.SKU)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicate
		}
		ledger, err = entity.NewStockLedger(in.SKU, product.ID, product.SellerID, threshold, uc.now())
		if err != nil {
			return err
		}
		if err := repos.Ledgers.Create(ctx, ledger); err != nil {
			return err
		}
		_, err = uc.reconciler.ReconcileInTx(ctx, repos, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("sku", ledger.SKU).Str("product_id", ledger.ProductID).Msg("SKU registrado")
	notify(ctx, uc.observers, ledger)
	return ledger, nil
}

// RetireSKU retira el SKU: deja de aceptar movimientos y de contar en resúmenes y vista.
func (uc *CatalogUseCase) RetireSKU(ctx context.Context, actor entity.Actor, sku string) (*entity.StockLedger, error) {
	return uc.mutate(ctx, actor, sku, true, func(l *entity.StockLedger) error {
		if l.Retired {
			return domain.NewValidationError("sku", "el SKU ya está retirado")
		}
		l.Retire(uc.now())
		return nil
	})
}

// SetThreshold cambia el umbral de stock bajo del SKU y recalcula su estado.
func (uc *CatalogUseCase) SetThreshold(ctx context.Context, actor entity.Actor, sku string, threshold int64) (*entity.StockLedger, error) {
	return uc.mutate(ctx, actor, sku, false, func(l *entity.StockLedger) error {
		if err := l.SetThreshold(threshold); err != nil {
			return err
		}
		l.UpdatedAt = uc.now()
		return nil
	})
}

// mutate aplica fn sobre el ledger bloqueado con control optimista de versión.
func (uc *CatalogUseCase) mutate(ctx context.Context, actor entity.Actor, sku string, reconcile bool, fn func(*entity.StockLedger) error) (*entity.StockLedger, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, domain.NewValidationError("sku", "requerido")
	}
	unlock, err := uc.locker.Lock(ctx, sku)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ledger *entity.StockLedger
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = uc.txRunner.Run(ctx, func(repos Repositories) error {
			l, err := repos.Ledgers.GetForUpdate(ctx, sku)
			if err != nil {
				return err
			}
			if l == nil {
				return domain.ErrUnknownSKU
			}
			if !actor.CanAccess(l.SellerID) {
				return domain.ErrForbidden
			}
			expected := l.Version
			if err := fn(l); err != nil {
				return err
			}
			if err := repos.Ledgers.Update(ctx, l, expected); err != nil {
				return err
			}
			if reconcile {
				if _, err := uc.reconciler.ReconcileInTx(ctx, repos, l.ProductID); err != nil {
					return err
				}
			}
			ledger = l
			return nil
		})
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("sku", sku).Bool("retired", ledger.Retired).Int64("low_stock_threshold", ledger.LowStockThreshold).Msg("SKU actualizado")
	notify(ctx, uc.observers, ledger)
	return ledger, nil
}

func (uc *CatalogUseCase) threshold(v *int64) (int64, error) {
	if v == nil {
		return uc.defaultThreshold, nil
	}
	if *v < 0 {
		return 0, domain.NewValidationError("low_stock_threshold", "no puede ser negativo")
	}
	return *v, nil
}
