package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// SnapshotReconciler recalcula la vista simplificada del producto dentro de la
// transacción del caller. El ledger manda: la vista nunca se escribe por otro camino.
type SnapshotReconciler struct {
	now func() time.Time
}

// NewSnapshotReconciler construye el reconciliador.
func NewSnapshotReconciler() *SnapshotReconciler {
	return &SnapshotReconciler{now: time.Now}
}

// ReconcileInTx bloquea la fila del snapshot (después del ledger) y la reescribe con el
// agregado de los ledgers del producto. La marca NeedsReview se conserva.
func (r *SnapshotReconciler) ReconcileInTx(ctx context.Context, repos Repositories, productID string) (*entity.ProductStockSnapshot, error) {
	return r.rebuild(ctx, repos, productID, false)
}

// rebuild reescribe el snapshot; clearReview solo lo usa Reconcile, que es la revisión.
func (r *SnapshotReconciler) rebuild(ctx context.Context, repos Repositories, productID string, clearReview bool) (*entity.ProductStockSnapshot, error) {
	product, err := repos.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownProduct
	}
	stored, err := repos.Snapshots.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	ledgers, err := repos.Ledgers.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	snap, err := domaininv.BuildSnapshot(product, ledgers, r.now())
	if err != nil {
		return nil, err
	}
	snap.NeedsReview = !clearReview && stored != nil && stored.NeedsReview
	if err := repos.Snapshots.Upsert(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ReconcileResult comparación entre la vista almacenada y el agregado de ledgers.
type ReconcileResult struct {
	ProductID string
	Diverged  bool
	Stored    *entity.ProductStockSnapshot
	Computed  *entity.ProductStockSnapshot
}

// ReconciliationUseCase expone la vista simplificada de stock por producto a los
// consumidores del catálogo y traduce sus ediciones a movimientos del ledger.
type ReconciliationUseCase struct {
	txRunner   TxRunner
	locker     SKULocker
	movements  *MovementUseCase
	reconciler *SnapshotReconciler
	tolerance  int64
	log        *logger.Logger
}

// NewReconciliationUseCase construye el caso de uso. tolerance es la diferencia máxima
// admitida por Verify antes de marcar el producto para revisión.
func NewReconciliationUseCase(
	txRunner TxRunner,
	locker SKULocker,
	movements *MovementUseCase,
	reconciler *SnapshotReconciler,
	tolerance int64,
	log *logger.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txRunner:   txRunner,
		locker:     locker,
		movements:  movements,
		reconciler: reconciler,
		tolerance:  tolerance,
		log:        log.Component("reconciliation"),
	}
}

// GetProductSnapshot devuelve la vista simplificada. Si aún no existe se materializa.
func (uc *ReconciliationUseCase) GetProductSnapshot(ctx context.Context, actor entity.Actor, productID string) (*entity.ProductStockSnapshot, error) {
	var snap *entity.ProductStockSnapshot
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		if _, err := authorizeProduct(ctx, repos, actor, productID); err != nil {
			return err
		}
		var err error
		snap, err = repos.Snapshots.Get(ctx, productID)
		if err != nil || snap != nil {
			return err
		}
		snap, err = uc.reconciler.ReconcileInTx(ctx, repos, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Reconcile fuerza la reescritura de la vista desde los ledgers, limpia NeedsReview e
// informa si divergía.
func (uc *ReconciliationUseCase) Reconcile(ctx context.Context, actor entity.Actor, productID string) (*ReconcileResult, error) {
	var res *ReconcileResult
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		if _, err := authorizeProduct(ctx, repos, actor, productID); err != nil {
			return err
		}
		stored, err := repos.Snapshots.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		computed, err := uc.reconciler.rebuild(ctx, repos, productID, true)
		if err != nil {
			return err
		}
		res = &ReconcileResult{
			ProductID: productID,
			Diverged:  domaininv.Diverges(stored, computed, 0),
			Stored:    stored,
			Computed:  computed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Diverged {
		uc.log.Warn().Str("product_id", productID).Msg("vista de stock corregida desde los ledgers")
	}
	return res, nil
}

// Verify compara la vista con los ledgers sin corregirla. Si la diferencia supera la
// tolerancia marca NeedsReview y lo registra.
func (uc *ReconciliationUseCase) Verify(ctx context.Context, actor entity.Actor, productID string) (*ReconcileResult, error) {
	var res *ReconcileResult
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		product, err := authorizeProduct(ctx, repos, actor, productID)
		if err != nil {
			return err
		}
		stored, err := repos.Snapshots.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		ledgers, err := repos.Ledgers.ListByProduct(ctx, productID)
		if err != nil {
			return err
		}
		computed, err := domaininv.BuildSnapshot(product, ledgers, uc.reconciler.now())
		if err != nil {
			return err
		}
		res = &ReconcileResult{
			ProductID: productID,
			Diverged:  domaininv.Diverges(stored, computed, uc.tolerance),
			Stored:    stored,
			Computed:  computed,
		}
		if res.Diverged && stored != nil && !stored.NeedsReview {
			stored.NeedsReview = true
			return repos.Snapshots.Upsert(ctx, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Diverged {
		ev := uc.log.Warn().Str("product_id", productID).Int64("computed", res.Computed.Quantity)
		if res.Stored != nil {
			ev = ev.Int64("stored", res.Stored.Quantity)
		}
		ev.Msg("vista de stock divergente, marcada para revisión")
	}
	return res, nil
}

// EditSnapshot traduce una edición manual de la cantidad del producto en un ajuste
// implícito sobre su único SKU activo. Con varios SKU devuelve ErrAmbiguousReconciliation.
// movementID vacío genera uno nuevo; repetir el mismo movementID es idempotente.
func (uc *ReconciliationUseCase) EditSnapshot(ctx context.Context, actor entity.Actor, productID string, quantity int64, movementID string) (*MovementResult, error) {
	if quantity < 0 {
		return nil, domain.NewValidationError("quantity", "no puede ser negativa")
	}
	target, err := uc.attribute(ctx, actor, productID)
	if err != nil {
		return nil, err
	}

	unlock, err := uc.locker.Lock(ctx, target.SKU)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Releer bajo el lock: reserved puede haber cambiado.
	var product *entity.Product
	var ledger *entity.StockLedger
	err = uc.txRunner.Run(ctx, func(repos Repositories) error {
		var err error
		if product, err = repos.Products.GetByID(ctx, productID); err != nil {
			return err
		}
		if ledger, err = repos.Ledgers.Get(ctx, target.SKU); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownProduct
	}
	if ledger == nil {
		return nil, domain.ErrUnknownSKU
	}

	available, err := domaininv.TargetAvailable(product.SnapshotPolicy, ledger, quantity)
	if err != nil {
		return nil, err
	}
	if movementID == "" {
		movementID = uuid.New().String()
	}
	// La imputación se decidió fuera de la transacción; se vuelve a comprobar con la
	// fila del snapshot bloqueada para que un RegisterSKU concurrente no pase inadvertido.
	stillSole := func(ctx context.Context, repos Repositories, l *entity.StockLedger) error {
		if _, err := repos.Snapshots.GetForUpdate(ctx, productID); err != nil {
			return err
		}
		ledgers, err := repos.Ledgers.ListByProduct(ctx, productID)
		if err != nil {
			return err
		}
		current, err := domaininv.AttributeEdit(ledgers)
		if err != nil {
			return err
		}
		if current.SKU != l.SKU {
			return fmt.Errorf("%w: los SKU del producto cambiaron durante la edición", domain.ErrAmbiguousReconciliation)
		}
		return nil
	}
	return uc.movements.submitChecked(ctx, actor, entity.StockMovement{
		MovementID: movementID,
		SKU:        ledger.SKU,
		Type:       entity.MovementAdjustment,
		Quantity:   available,
		Reason:     "edición de stock desde catálogo",
	}, stillSole)
}

// MigrateLegacyQuantity importa la cantidad heredada del catálogo (número o
// {quantity,status,lowStockThreshold}) como ajuste. Es idempotente por producto.
func (uc *ReconciliationUseCase) MigrateLegacyQuantity(ctx context.Context, actor entity.Actor, productID string, raw []byte) (*MovementResult, error) {
	quantity, err := domaininv.ParseLegacyQuantity(raw)
	if err != nil {
		return nil, err
	}
	return uc.EditSnapshot(ctx, actor, productID, quantity, LegacyMovementID(productID))
}

// LegacyMovementID movement_id fijo de la migración de un producto.
func LegacyMovementID(productID string) string {
	return "legacy-" + productID
}

func (uc *ReconciliationUseCase) attribute(ctx context.Context, actor entity.Actor, productID string) (*entity.StockLedger, error) {
	var target *entity.StockLedger
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		if _, err := authorizeProduct(ctx, repos, actor, productID); err != nil {
			return err
		}
		ledgers, err := repos.Ledgers.ListByProduct(ctx, productID)
		if err != nil {
			return err
		}
		target, err = domaininv.AttributeEdit(ledgers)
		return err
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

func authorizeProduct(ctx context.Context, repos Repositories, actor entity.Actor, productID string) (*entity.Product, error) {
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "requerido")
	}
	product, err := repos.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownProduct
	}
	if !actor.CanAccess(product.SellerID) {
		return nil, domain.ErrForbidden
	}
	return product, nil
}
