// Package app opens the clients shared by the api, worker and tool binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Dependencies enumerates the infrastructure clients of one process.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *pgxpool.Pool
	Queries *db.Queries
	Redis   *redis.Client
	// Mongo is nil unless MONGO_URL is set.
	Mongo *mongo.Database
	// Tasks enqueues background jobs onto the asynq queues in Redis.
	Tasks *asynq.Client

	closers []func()
}

// Options tunes Open for a particular binary.
type Options struct {
	// ApplicationName is reported to Postgres as application_name.
	ApplicationName string
	// RedisMetrics adds redisotel metric instrumentation next to tracing.
	RedisMetrics bool
	// SkipTasks leaves Tasks nil, for binaries that never enqueue.
	SkipTasks bool
}

// Open connects Postgres, Redis and, when configured, MongoDB, pinging each
// before returning. Close releases whatever was opened.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}
	if err := d.openPostgres(ctx, opts.ApplicationName); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.openRedis(ctx, opts.RedisMetrics); err != nil {
		d.Close()
		return nil, err
	}
	if cfg.MongoURL != "" {
		database, err := cart.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		d.Mongo = database
		d.closers = append(d.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.Client().Disconnect(ctx); err != nil {
				logger.Error().Err(err).Msg("disconnect mongo")
			}
		})
	}
	if !opts.SkipTasks {
		connOpt, err := d.TaskConnOpt()
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Tasks = asynq.NewClient(connOpt)
		d.closers = append(d.closers, func() {
			if err := d.Tasks.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		})
	}
	return d, nil
}

func (d *Dependencies) openPostgres(ctx context.Context, appName string) error {
	poolConfig, err := pgxpool.ParseConfig(d.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.NewPGXTracer()
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if appName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	d.closers = append(d.closers, pool.Close)
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	d.DB = pool
	d.Queries = db.New(pool)
	return nil
}

func (d *Dependencies) openRedis(ctx context.Context, metrics bool) error {
	redisOpts, err := redis.ParseURL(d.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	d.closers = append(d.closers, func() {
		if err := client.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	})
	if err := redisotel.InstrumentTracing(client); err != nil {
		d.Logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			d.Logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	d.Redis = client
	return nil
}

// TaskConnOpt returns the asynq connection options for REDIS_URL.
func (d *Dependencies) TaskConnOpt() (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(d.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}

// CartStore returns the backend selected by CART_STORE.
func (d *Dependencies) CartStore(ctx context.Context) (cart.Store, error) {
	switch d.Config.CartStore {
	case config.CartStoreMongo:
		if d.Mongo == nil {
			return nil, errors.New("cart store mongo selected but MONGO_URL is empty")
		}
		store := cart.NewMongoStore(d.Mongo)
		if err := store.CreateIndexes(ctx); err != nil {
			return nil, fmt.Errorf("create cart indexes: %w", err)
		}
		return store, nil
	default:
		return &cart.PGStore{Q: d.Queries, Logger: &d.Logger}, nil
	}
}

// Probes lists the readiness checks for every opened backend.
func (d *Dependencies) Probes() []health.Probe {
	probes := []health.Probe{
		{Name: "postgres", Timeout: 500 * time.Millisecond, Ping: func(ctx context.Context) error {
			return d.DB.Ping(ctx)
		}},
		{Name: "redis", Timeout: 300 * time.Millisecond, Ping: func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}},
	}
	if d.Mongo != nil {
		probes = append(probes, health.Probe{Name: "mongo", Timeout: 500 * time.Millisecond, Ping: func(ctx context.Context) error {
			return d.Mongo.Client().Ping(ctx, nil)
		}})
	}
	return probes
}

// Close releases the clients in reverse order of opening.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// HashPassword hashes with the same argon2id parameters the auth service uses.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}
