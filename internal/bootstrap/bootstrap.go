// Package bootstrap wires configuration into the running application graph.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/opsdeck/opsdeck/internal/adapter/ai"
	httpadapter "github.com/opsdeck/opsdeck/internal/adapter/http"
	"github.com/opsdeck/opsdeck/internal/adapter/persistence"
	"github.com/opsdeck/opsdeck/internal/config"
	"github.com/opsdeck/opsdeck/internal/infra/faults"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/ratelimit"
	"github.com/opsdeck/opsdeck/internal/infra/token"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/usecase"
)

// App holds every long-lived component of a running instance
type App struct {
	Config *config.Config
	Log    logger.Logger

	// RawStore bypasses access rules; only migrations use it
	RawStore ports.DocumentStore
	Store    ports.DocumentStore
	Faults   ports.FaultBridge
	AI       ports.AIProviderFactory
	Tokens   *token.JWTService
	Limiter  ratelimit.Limiter
	Redis    *redis.Client

	Entities   *usecase.EntityUseCase
	Onboarding *usecase.OnboardingUseCase
	Settings   *usecase.SettingsUseCase
	Quotes     *usecase.QuoteUseCase
	Reports    *usecase.ReportUseCase
	Seed       *usecase.SeedUseCase

	closers []func() error
}

// New dials the configured backends and builds the use cases on top of them.
// Background workers such as the Redis fault relay run until ctx ends.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log}

	raw, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.RawStore = raw
	app.Store = persistence.NewSecuredDocumentStore(raw)

	local := faults.NewLocalBridge(log)
	app.Faults = local
	if cfg.Redis.Enabled {
		client, err := app.openRedis(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = client
		bridge := faults.NewRedisBridge(client, local, log)
		app.Faults = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error(ctx, "Fault relay stopped", err, nil)
			}
		}()
	}

	app.AI = ai.NewProviderFactory(cfg.ToAIConfig())
	app.Limiter = ratelimit.New(app.Redis, cfg.ToRateLimitConfig(), log)

	if cfg.Auth.JWTSecret != "" {
		tokens, err := token.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Tokens = tokens
	} else {
		log.Warn(ctx, "No JWT secret configured, bearer tokens are rejected", map[string]interface{}{
			"dev_identity": cfg.Server.AllowDevIdentity,
		})
	}

	writer := usecase.NewOrgWriter(app.Store, app.Faults, log)
	app.Entities = usecase.NewEntityUseCase(app.Store, writer, log)
	app.Onboarding = usecase.NewOnboardingUseCase(writer, log)
	app.Settings = usecase.NewSettingsUseCase(app.Store, writer, log)
	app.Quotes = usecase.NewQuoteUseCase(app.AI, log)
	app.Reports = usecase.NewReportUseCase(app.Store, log)
	app.Seed = usecase.NewSeedUseCase(app.Store, writer, log)

	log.Info(ctx, "Application wired", map[string]interface{}{
		"store":       cfg.Store.Driver,
		"redis":       cfg.Redis.Enabled,
		"ai_provider": app.AI.Provider(),
	})
	return app, nil
}

// Migrate prepares the store schema when the store needs one
func (a *App) Migrate(ctx context.Context) error {
	m, ok := a.RawStore.(ports.SchemaMigrator)
	if !ok {
		a.Log.Info(ctx, "Store needs no migrations", map[string]interface{}{"store": a.Config.Store.Driver})
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate %s store: %w", a.Config.Store.Driver, err)
	}
	a.Log.Info(ctx, "Migrations completed", map[string]interface{}{"store": a.Config.Store.Driver})
	return nil
}

// HTTPDependencies returns the collaborators the HTTP router is built from
func (a *App) HTTPDependencies() httpadapter.Dependencies {
	deps := httpadapter.Dependencies{
		Store:      a.Store,
		Faults:     a.Faults,
		AI:         a.AI,
		Limiter:    a.Limiter,
		Logger:     a.Log,
		Entities:   a.Entities,
		Onboarding: a.Onboarding,
		Settings:   a.Settings,
		Quotes:     a.Quotes,
		Reports:    a.Reports,
		Seed:       a.Seed,
	}
	// a nil *JWTService must not become a non-nil interface
	if a.Tokens != nil {
		deps.Tokens = a.Tokens
	}
	return deps
}

// ServerConfig returns the HTTP server settings
func (a *App) ServerConfig() httpadapter.ServerConfig {
	s := a.Config.Server
	return httpadapter.ServerConfig{
		Port:             s.Port,
		ReadTimeout:      s.ReadTimeout,
		WriteTimeout:     s.WriteTimeout,
		IdleTimeout:      s.IdleTimeout,
		AllowedOrigins:   s.AllowedOrigins,
		StreamHeartbeat:  s.StreamHeartbeat,
		AllowDevIdentity: s.AllowDevIdentity,
	}
}

// Close releases connections in reverse order of opening
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) openStore(ctx context.Context) (ports.DocumentStore, error) {
	switch a.Config.Store.Driver {
	case config.DriverMongo:
		return a.openMongo(ctx)
	case config.DriverPostgres:
		return a.openPostgres(ctx)
	case config.DriverMemory, "":
		a.Log.Warn(ctx, "Using the in-memory store, data is lost on restart", nil)
		return persistence.NewMemoryDocumentStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver: %s", a.Config.Store.Driver)
}

func (a *App) openMongo(ctx context.Context) (ports.DocumentStore, error) {
	sc := a.Config.Store
	client, err := retry(ctx, a, "mongo", func() (*mongo.Client, error) {
		connectCtx, cancel := context.WithTimeout(ctx, sc.ConnectTimeout)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(sc.MongoURI))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
		return client, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(shutdownCtx)
	})
	a.Log.Info(ctx, "Mongo connection established", map[string]interface{}{
		"database":   sc.MongoDatabase,
		"collection": sc.MongoCollection,
	})
	return persistence.NewMongoDocumentStore(client.Database(sc.MongoDatabase).Collection(sc.MongoCollection)), nil
}

func (a *App) openPostgres(ctx context.Context) (ports.DocumentStore, error) {
	sc := a.Config.Store
	dsn := a.Config.PostgresDSN()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(sc.MaxConnections)
	db.SetMaxIdleConns(sc.MaxConnections / 2)
	a.closers = append(a.closers, db.Close)

	_, err = retry(ctx, a, "postgres", func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, sc.ConnectTimeout)
		defer cancel()
		return struct{}{}, db.PingContext(pingCtx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	a.Log.Info(ctx, "Database connection established", map[string]interface{}{
		"host":     sc.PostgresHost,
		"database": sc.PostgresDB,
	})
	return persistence.NewPostgresDocumentStore(db, dsn), nil
}

func (a *App) openRedis(ctx context.Context) (*redis.Client, error) {
	rc := a.Config.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
		PoolSize: rc.PoolSize,
	})
	a.closers = append(a.closers, client.Close)

	_, err := retry(ctx, a, "redis", func() (string, error) {
		return client.Ping(ctx).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Log.Info(ctx, "Redis connection established", map[string]interface{}{"addr": rc.Addr})
	return client, nil
}

// retry runs connect with exponential backoff until it succeeds or the retry budget is spent
func retry[T any](ctx context.Context, a *App, backend string, connect func() (T, error)) (T, error) {
	return backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(a.Config.Store.ConnectRetry),
		backoff.WithNotify(func(err error, next time.Duration) {
			a.Log.Warn(ctx, "Backend not ready, retrying", map[string]interface{}{
				"backend":  backend,
				"error":    err.Error(),
				"retry_in": next.String(),
			})
		}),
	)
}
