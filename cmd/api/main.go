package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	infrakafka "github.com/jhoicas/marketplace-stock/internal/infrastructure/kafka"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/marketplace-stock/internal/infrastructure/pdf"
	"github.com/jhoicas/marketplace-stock/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/marketplace-stock/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/marketplace-stock/internal/interfaces/http"
	"github.com/jhoicas/marketplace-stock/pkg/config"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Almacenamiento del ledger: PostgreSQL o memoria (desarrollo y pruebas).
	var txRunner inventory.TxRunner
	if cfg.DB.Driver == "memory" {
		txRunner = memory.NewStore()
		log.Warn().Msg("store en memoria: los datos se pierden al reiniciar")
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.AutoMigrate {
			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
			log.Info().Strs("applied", applied).Msg("migraciones al día")
		}
		txRunner = postgres.NewTxRunner(pool)
	}

	// Lock por SKU: Redis si hay varias instancias, si no en memoria.
	var locker inventory.SKULocker = memory.NewKeyedLocker()
	if cfg.Redis.Enabled() {
		client := infraredis.NewClient(infraredis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisLocker := infraredis.NewLocker(client, infraredis.Config{
			TTL:  cfg.Redis.LockTTL,
			Wait: cfg.Redis.LockWait,
		}, log)
		if err := redisLocker.Ping(ctx); err != nil {
			log.Fatal().Err(err).Strs("addrs", cfg.Redis.Addrs).Msg("conexión a Redis")
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	// Publicación de movimientos aplicados.
	var publisher inventory.EventPublisher = inventory.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		kafkaPublisher := infrakafka.NewPublisher(
			infrakafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic),
			log,
		)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	reconciler := inventory.NewSnapshotReconciler()
	queryUC := inventory.NewQueryUseCase(txRunner, log)
	movementUC := inventory.NewMovementUseCase(txRunner, locker, publisher, reconciler, log, queryUC)
	catalogUC := inventory.NewCatalogUseCase(txRunner, locker, reconciler, cfg.Stock.DefaultLowStockThreshold, log, queryUC)
	reconUC := inventory.NewReconciliationUseCase(txRunner, locker, movementUC, reconciler, cfg.Stock.ReconcileTolerance, log)
	reportUC := inventory.NewReportUseCase(queryUC, infrapdf.NewMarotoReportGenerator())

	if err := queryUC.RebuildSummaries(ctx); err != nil {
		log.Fatal().Err(err).Msg("construir resúmenes iniciales")
	}

	// Cada instancia sigue el topic con su propio grupo para ver los movimientos de las demás.
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.Kafka.Enabled() {
		groupID := cfg.Kafka.GroupID + "-" + instanceID()
		consumer := infrakafka.NewConsumer(
			infrakafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID, log),
			log,
		)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(consumerCtx, queryUC); err != nil {
				log.Error().Err(err).Msg("consumidor de movimientos finalizado")
			}
		}()
		log.Info().Str("group", groupID).Msg("consumidor de movimientos iniciado")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(cfg.App.SwaggerPath); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: cfg.App.SwaggerPath,
			Path:     "docs",
			Title:    "Marketplace Stock API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Movements:      movementUC,
		Catalog:        catalogUC,
		Reconciliation: reconUC,
		Queries:        queryUC,
		Reports:        reportUC,
		JWTSecret:      cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// instanceID identifica la instancia para su grupo de consumo (hostname del pod).
func instanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}
