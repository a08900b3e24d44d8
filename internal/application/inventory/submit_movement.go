package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// maxConflictRetries reintentos ante ErrConcurrencyConflict (otra instancia ganó la versión).
const maxConflictRetries = 3

// MovementResult resultado de aplicar (o repetir) un movimiento.
type MovementResult struct {
	Event    *entity.AppliedEvent
	Ledger   *entity.StockLedger
	Replayed bool // el movement_id ya estaba aplicado; no hubo cambios
}

// BatchResult resultado por movimiento de SubmitBatch, en el orden de entrada.
type BatchResult struct {
	Movement entity.StockMovement
	Result   *MovementResult
	Err      error
}

// MovementUseCase aplica movimientos de stock: exclusión por SKU, transacción con
// bloqueo de fila, registro en el log y reconciliación de la vista de catálogo.
type MovementUseCase struct {
	txRunner   TxRunner
	locker     SKULocker
	publisher  EventPublisher
	reconciler *SnapshotReconciler
	observers  []LedgerObserver
	log        *logger.Logger
	now        func() time.Time
}

// NewMovementUseCase construye el caso de uso. publisher puede ser nil.
func NewMovementUseCase(
	txRunner TxRunner,
	locker SKULocker,
	publisher EventPublisher,
	reconciler *SnapshotReconciler,
	log *logger.Logger,
	observers ...LedgerObserver,
) *MovementUseCase {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &MovementUseCase{
		txRunner:   txRunner,
		locker:     locker,
		publisher:  publisher,
		reconciler: reconciler,
		observers:  observers,
		log:        log.Component("movements"),
		now:        time.Now,
	}
}

// SubmitMovement aplica un movimiento. Repetir un movement_id ya aplicado devuelve el
// resultado original con Replayed=true. Errores: ValidationError, ErrUnknownSKU,
// InsufficientStockError, ErrForbidden.
func (uc *MovementUseCase) SubmitMovement(ctx context.Context, actor entity.Actor, m entity.StockMovement) (*MovementResult, error) {
	if err := domaininv.ValidateMovement(m); err != nil {
		return nil, err
	}
	unlock, err := uc.locker.Lock(ctx, m.SKU)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return uc.submitLocked(ctx, actor, m)
}

// SubmitBatch aplica un lote. Los movimientos se agrupan por SKU y cada grupo se ordena
// (timestamp, salidas antes que entradas, ajustes al final) y se aplica en su propia
// goroutine; SKU distintos avanzan en paralelo. Un rechazo no detiene al resto.
func (uc *MovementUseCase) SubmitBatch(ctx context.Context, actor entity.Actor, ms []entity.StockMovement) []BatchResult {
	results := make([]BatchResult, len(ms))
	groups := make(map[string][]int)
	for i, m := range ms {
		results[i].Movement = m
		groups[m.SKU] = append(groups[m.SKU], i)
	}

	var wg sync.WaitGroup
	for _, idx := range groups {
		wg.Add(1)
		go func(idx []int) {
			defer wg.Done()
			ordered := make([]entity.StockMovement, len(idx))
			pos := make(map[string][]int, len(idx))
			for k, i := range idx {
				ordered[k] = ms[i]
				pos[ms[i].MovementID] = append(pos[ms[i].MovementID], i)
			}
			domaininv.SortForApply(ordered)
			for _, m := range ordered {
				i := pos[m.MovementID][0]
				pos[m.MovementID] = pos[m.MovementID][1:]
				res, err := uc.SubmitMovement(ctx, actor, m)
				results[i].Result, results[i].Err = res, err
			}
		}(idx)
	}
	wg.Wait()
	return results
}

// applyCheck se ejecuta dentro de la transacción del movimiento, con el ledger ya
// bloqueado y antes de aplicarlo. Un error aborta el movimiento.
type applyCheck func(ctx context.Context, repos Repositories, l *entity.StockLedger) error

// submitLocked asume el lock del SKU tomado por el caller.
func (uc *MovementUseCase) submitLocked(ctx context.Context, actor entity.Actor, m entity.StockMovement) (*MovementResult, error) {
	return uc.submitChecked(ctx, actor, m, nil)
}

func (uc *MovementUseCase) submitChecked(ctx context.Context, actor entity.Actor, m entity.StockMovement, check applyCheck) (*MovementResult, error) {
	if m.CreatedBy == "" {
		m.CreatedBy = actor.UserID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = uc.now()
	}

	log := uc.log.WithSKU(m.SKU)
	var res *MovementResult
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		res, err = uc.applyOnce(ctx, actor, m, check)
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			break
		}
		log.Warn().Str("movement_id", m.MovementID).Int("attempt", attempt).Msg("conflicto de versión, reintentando")
	}
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		log.Debug().Str("movement_id", m.MovementID).Msg("movimiento repetido, sin cambios")
		return res, nil
	}

	log.Info().
		Str("movement_id", res.Event.MovementID).
		Str("type", string(res.Event.Type)).
		Int64("quantity", res.Event.Quantity).
		Int64("available", res.Event.After.Available).
		Int64("reserved", res.Event.After.Reserved).
		Str("status", string(res.Event.After.Status)).
		Msg("movimiento aplicado")

	notify(ctx, uc.observers, res.Ledger)
	if err := uc.publisher.Publish(ctx, res.Event); err != nil {
		// El movimiento ya está confirmado; el log es la fuente de verdad.
		log.Error().Err(err).Str("movement_id", res.Event.MovementID).Msg("no se pudo publicar el movimiento")
	}
	return res, nil
}

func (uc *MovementUseCase) applyOnce(ctx context.Context, actor entity.Actor, m entity.StockMovement, check applyCheck) (*MovementResult, error) {
	var res *MovementResult
	err := uc.txRunner.Run(ctx, func(repos Repositories) error {
		prior, err := repos.Movements.Get(ctx, m.MovementID)
		if err != nil {
			return err
		}
		if prior != nil {
			if prior.SKU != m.SKU {
				return domain.NewValidationError("movement_id", "ya fue usado para otro SKU")
			}
			if !actor.CanAccess(prior.SellerID) {
				return domain.ErrForbidden
			}
			l, err := repos.Ledgers.Get(ctx, m.SKU)
			if err != nil {
				return err
			}
			res = &MovementResult{Event: prior, Ledger: l, Replayed: true}
			return nil
		}

		l, err := repos.Ledgers.GetForUpdate(ctx, m.SKU)
		if err != nil {
			return err
		}
		if l == nil {
			return domain.ErrUnknownSKU
		}
		if !actor.CanAccess(l.SellerID) {
			return domain.ErrForbidden
		}
		if check != nil {
			if err := check(ctx, repos, l); err != nil {
				return err
			}
		}

		expected := l.Version
		ev, err := domaininv.Process(l, m, uc.now())
		if err != nil {
			return err
		}
		ev.ID = uuid.New().String()

		if err := repos.Ledgers.Update(ctx, l, expected); err != nil {
			return err
		}
		if err := repos.Movements.Append(ctx, ev); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// Otra instancia registró el mismo movement_id; el reintento lo verá como repetido.
				return domain.ErrConcurrencyConflict
			}
			return err
		}
		if _, err := uc.reconciler.ReconcileInTx(ctx, repos, l.ProductID); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res = &MovementResult{Event: ev, Ledger: l}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func notify(ctx context.Context, observers []LedgerObserver, l *entity.StockLedger) {
	if l == nil {
		return
	}
	for _, o := range observers {
		o.LedgerChanged(ctx, l.Clone())
	}
}
