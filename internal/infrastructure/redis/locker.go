// Package redis implementa el lock distribuido por SKU para despliegues con varias instancias.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// ErrLockTimeout no se obtuvo el lock dentro del tiempo de espera.
var ErrLockTimeout = fmt.Errorf("redis: tiempo de espera agotado: %w", domain.ErrLockUnavailable)

// releaseScript borra la clave solo si sigue siendo nuestra.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Config opciones del locker.
type Config struct {
	Addrs     []string
	Password  string
	DB        int
	TTL       time.Duration // vida máxima del lock si el proceso muere
	Wait      time.Duration // espera máxima para obtenerlo
	Retry     time.Duration // intervalo entre intentos
	KeyPrefix string
}

// Backend operaciones de Redis que usa el locker.
type Backend interface {
	// TryLock hace SET key token NX PX ttl; false si la clave ya existe.
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release borra key solo si todavía contiene token.
	Release(ctx context.Context, key, token string) error
	Ping(ctx context.Context) error
	Close() error
}

// clientBackend Backend sobre un cliente go-redis.
type clientBackend struct {
	client redis.UniversalClient
}

func (b clientBackend) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, key, token, ttl).Result()
}

func (b clientBackend) Release(ctx context.Context, key, token string) error {
	err := releaseScript.Run(ctx, b.client, []string{key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (b clientBackend) Ping(ctx context.Context) error { return b.client.Ping(ctx).Err() }

func (b clientBackend) Close() error { return b.client.Close() }

// Locker lock por SKU sobre Redis (SET NX PX + liberación atómica con Lua).
type Locker struct {
	backend Backend
	cfg     Config
	log     *logger.Logger
}

var _ inventory.SKULocker = (*Locker)(nil)

// NewClient crea un cliente simple o de cluster según la cantidad de direcciones.
func NewClient(cfg Config) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Addrs,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 3,
		PoolSize:   20,
	})
}

// NewLocker construye el locker sobre el cliente go-redis.
func NewLocker(client redis.UniversalClient, cfg Config, log *logger.Logger) *Locker {
	return NewLockerWithBackend(clientBackend{client: client}, cfg, log)
}

// NewLockerWithBackend construye el locker con valores por defecto razonables.
func NewLockerWithBackend(backend Backend, cfg Config, log *logger.Logger) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 25 * time.Millisecond
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lock:stock:"
	}
	return &Locker{backend: backend, cfg: cfg, log: log.Component("redis-locker")}
}

// Ping verifica la conexión.
func (l *Locker) Ping(ctx context.Context) error {
	return l.backend.Ping(ctx)
}

// Lock reintenta SET NX hasta obtener la clave, agotar Wait o cancelarse ctx.
func (l *Locker) Lock(ctx context.Context, sku string) (func(), error) {
	key := l.cfg.KeyPrefix + sku
	token := uuid.New().String()
	deadline := time.Now().Add(l.cfg.Wait)

	for {
		ok, err := l.backend.TryLock(ctx, key, token, l.cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", sku, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.Retry):
		}
	}

	return func() {
		// Liberar aunque ctx esté cancelado.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.backend.Release(rctx, key, token); err != nil {
			l.log.Warn().Err(err).Str("sku", sku).Msg("no se pudo liberar el lock; expirará por TTL")
		}
	}, nil
}

// Close cierra el cliente.
func (l *Locker) Close() error {
	return l.backend.Close()
}
