// migrate_stock carga el stock de la plataforma anterior en el ledger.
//
// La exportación es un archivo de texto con una línea por producto:
//
//	product_id;stock
//
// donde stock es el valor heredado tal cual (número, texto numérico u objeto
// {"quantity": n, ...}). Las líneas vacías y las que empiezan con # se ignoran.
// Cada producto debe tener un único SKU activo; el valor se aplica como un ajuste
// con movement_id "legacy-<product_id>", así que repetir la carga no duplica nada.
//
// Uso: go run ./cmd/migrate_stock [-latin1] [-dry-run] export.txt
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	domaininv "github.com/jhoicas/marketplace-stock/internal/domain/inventory"
	infrakafka "github.com/jhoicas/marketplace-stock/internal/infrastructure/kafka"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/memory"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/marketplace-stock/internal/infrastructure/redis"
	"github.com/jhoicas/marketplace-stock/pkg/config"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// legacyRow una línea válida de la exportación.
type legacyRow struct {
	Line      int
	ProductID string
	Raw       []byte
}

// parseError línea que no se pudo interpretar.
type parseError struct {
	Line   int
	Reason string
}

func main() {
	args := os.Args[1:]
	latin1, dryRun := false, false
	var path string
	for _, a := range args {
		switch a {
		case "-latin1":
			latin1 = true
		case "-dry-run":
			dryRun = true
		default:
			path = a
		}
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "uso: migrate_stock [-latin1] [-dry-run] export.txt")
		os.Exit(2)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir exportación: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var r io.Reader = f
	if latin1 {
		// Las exportaciones antiguas salen en ISO-8859-1.
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	rows, bad, err := parseExport(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer exportación: %v\n", err)
		os.Exit(1)
	}
	for _, b := range bad {
		fmt.Fprintf(os.Stderr, "línea %d: %s\n", b.Line, b.Reason)
	}
	if dryRun {
		fmt.Printf("%d filas válidas, %d inválidas (dry-run, sin cambios)\n", len(rows), len(bad))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	if cfg.DB.Driver != "postgres" {
		log.Fatal().Str("store", cfg.DB.Driver).Msg("la migración requiere STORE_DRIVER=postgres")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool)
	locker, closeLocker, err := newLocker(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Strs("addrs", cfg.Redis.Addrs).Msg("conexión a Redis")
	}
	defer closeLocker()
	reconciler := inventory.NewSnapshotReconciler()
	// Los ajustes se publican como cualquier movimiento para que las instancias de la API
	// actualicen sus resúmenes.
	var publisher inventory.EventPublisher = inventory.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		kafkaPublisher := infrakafka.NewPublisher(infrakafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), log)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}
	movements := inventory.NewMovementUseCase(txRunner, locker, publisher, reconciler, log)
	recon := inventory.NewReconciliationUseCase(txRunner, locker, movements, reconciler, cfg.Stock.ReconcileTolerance, log)

	stats := migrate(ctx, recon, rows, log.Component("migrate-stock"))
	fmt.Printf("Migrados %d, repetidos %d, fallidos %d, inválidos %d\n", stats.applied, stats.replayed, stats.failed, len(bad))
	if stats.failed > 0 || len(bad) > 0 {
		os.Exit(1)
	}
}

// parseExport separa la exportación en filas válidas y errores por línea.
func parseExport(r io.Reader) ([]legacyRow, []parseError, error) {
	var rows []legacyRow
	var bad []parseError
	seen := make(map[string]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, raw, ok := strings.Cut(line, ";")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			bad = append(bad, parseError{Line: n, Reason: "formato esperado product_id;stock"})
			continue
		}
		if first, dup := seen[id]; dup {
			bad = append(bad, parseError{Line: n, Reason: fmt.Sprintf("producto %s repetido (línea %d)", id, first)})
			continue
		}
		if _, err := domaininv.ParseLegacyQuantity([]byte(raw)); err != nil {
			bad = append(bad, parseError{Line: n, Reason: err.Error()})
			continue
		}
		seen[id] = n
		rows = append(rows, legacyRow{Line: n, ProductID: id, Raw: []byte(strings.TrimSpace(raw))})
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return rows, bad, nil
}

type migrateStats struct {
	applied, replayed, failed int
}

// legacyMigrator lo implementa *inventory.ReconciliationUseCase.
type legacyMigrator interface {
	MigrateLegacyQuantity(ctx context.Context, actor entity.Actor, productID string, raw []byte) (*inventory.MovementResult, error)
}

// migrate aplica cada fila como administrador; un fallo no detiene el resto.
func migrate(ctx context.Context, m legacyMigrator, rows []legacyRow, log *logger.Logger) migrateStats {
	actor := entity.Actor{UserID: "migrate_stock", Role: entity.RoleAdmin}
	var st migrateStats
	for _, row := range rows {
		res, err := m.MigrateLegacyQuantity(ctx, actor, row.ProductID, row.Raw)
		switch {
		case err == nil && res.Replayed:
			st.replayed++
		case err == nil:
			st.applied++
			log.Debug().Str("product_id", row.ProductID).Int64("available", res.Ledger.Available).Msg("stock migrado")
		case errors.Is(err, domain.ErrAmbiguousReconciliation):
			st.failed++
			log.Warn().Int("line", row.Line).Str("product_id", row.ProductID).Msg("producto con varios SKU: cargar por SKU")
		default:
			st.failed++
			log.Error().Err(err).Int("line", row.Line).Str("product_id", row.ProductID).Msg("migrar stock")
		}
	}
	return st
}

// newLocker usa el lock por SKU de Redis cuando está configurado: la API puede estar
// sirviendo y la migración debe serializarse con ella.
func newLocker(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (inventory.SKULocker, func(), error) {
	if !cfg.Enabled() {
		return memory.NewKeyedLocker(), func() {}, nil
	}
	locker := infraredis.NewLocker(infraredis.NewClient(infraredis.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), infraredis.Config{TTL: cfg.LockTTL, Wait: cfg.LockWait}, log)
	if err := locker.Ping(ctx); err != nil {
		_ = locker.Close()
		return nil, nil, err
	}
	return locker, func() { _ = locker.Close() }, nil
}
