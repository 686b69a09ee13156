// Package app assembles the todo server from configuration: it opens the
// selected store, picks the change notifier, configures authentication and
// mounts every route on a gin engine.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/todomini/todomini-server/handlers"
	"github.com/todomini/todomini-server/internal/clock"
	"github.com/todomini/todomini-server/internal/config"
	"github.com/todomini/todomini-server/internal/database"
	"github.com/todomini/todomini-server/internal/oidc"
	"github.com/todomini/todomini-server/internal/storage"
	"github.com/todomini/todomini-server/internal/todo/handler"
	"github.com/todomini/todomini-server/internal/todo/notify"
	"github.com/todomini/todomini-server/internal/todo/repository"
	"github.com/todomini/todomini-server/internal/todo/service"
	"github.com/todomini/todomini-server/internal/tokens"
	"github.com/todomini/todomini-server/pkg/logger"
	"github.com/todomini/todomini-server/pkg/metrics"
	"github.com/todomini/todomini-server/pkg/middleware"
)

const mongoConnectAttempts = 5

// App is a fully wired server. Close releases every connection it opened.
type App struct {
	Engine *gin.Engine

	Store    repository.Store
	Mutation *service.MutationService
	Poller   *service.ChangePoller

	closers []func() error
}

// Options overrides collaborators for tests.
type Options struct {
	Clock    clock.Clock
	Registry *prometheus.Registry
	// Redis replaces the client built from cfg.Redis.
	Redis *redis.Client
}

// New builds the server described by cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	rdb := opts.Redis
	if rdb == nil && cfg.UsesRedis() {
		rdb, err = database.ConnectRedis(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
	}

	checks := map[string]handlers.Check{}
	store, storeCheck, err := a.openStore(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if storeCheck != nil {
		checks["store"] = storeCheck
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	notifier, err := a.openNotifier(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	a.Mutation = service.NewMutationService(store, opts.Clock, notifier, cfg.Todo.Suffix)
	a.Poller = service.NewChangePoller(store, opts.Clock, notifier, cfg.Poll.MaxWait)

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.CORS())

	metrics.RegisterCollectors(opts.Registry)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	handlers.RegisterHealth(r, time.Now(), 2*time.Second, checks)
	handlers.RegisterSwagger(r)

	var extra []gin.HandlerFunc
	if verifier != nil {
		extra = append(extra, middleware.AuthMiddleware(verifier), middleware.FolderScope())
	}
	if cfg.RateLimit.Enabled {
		// after auth so authenticated callers are limited per subject
		if cfg.RateLimit.UseRedis {
			extra = append(extra, middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			extra = append(extra, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.RegisterTodoRoutes(r, a.Mutation, a.Poller, extra...)

	a.Engine = r
	logger.Infof("todo server ready: store=%s notify=%s auth=%v rate_limit=%v max_wait=%ds",
		cfg.Store.Backend, cfg.Poll.Notify, verifier != nil, cfg.RateLimit.Enabled, a.Poller.DefaultWait())
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (repository.Store, handlers.Check, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return repository.NewMemoryRepo(), nil, nil

	case config.BackendMongo:
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts, func(attempt int, err error) {
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, mongoConnectAttempts, err)
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		repo, err := repository.NewMongoRepo(ctx, col)
		if err != nil {
			return nil, nil, err
		}
		return repo, func(ctx context.Context) error { return client.Ping(ctx, nil) }, nil

	case config.BackendRedis:
		return repository.NewRedisRepo(rdb, cfg.Redis.Prefix), nil, nil

	case config.BackendPostgres, config.BackendSQLite:
		driver, dsn, dialect := database.DriverPostgres, cfg.SQL.PostgresDSN, repository.DialectPostgres
		if cfg.Store.Backend == config.BackendSQLite {
			driver, dsn, dialect = database.DriverSQLite, cfg.SQL.SQLitePath, repository.DialectSQLite
		}
		db, err := database.OpenSQL(ctx, driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		repo := repository.NewSQLRepo(db, dialect)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return repo, db.PingContext, nil

	case config.BackendMinIO:
		objects, err := storage.NewMinIOStorage(ctx, &storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewObjectRepo(objects), objects.Ping, nil
	}
	return nil, nil, fmt.Errorf("app: unknown store backend %q", cfg.Store.Backend)
}

func (a *App) openNotifier(ctx context.Context, cfg *config.Config, rdb *redis.Client) (notify.Notifier, error) {
	switch cfg.Poll.Notify {
	case config.NotifyNone:
		return nil, nil
	case config.NotifyRedis:
		n, err := notify.NewRedisNotifier(ctx, rdb, cfg.Redis.Prefix+"changed:")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, n.Close)
		return n, nil
	default:
		return notify.NewBroadcaster(), nil
	}
}

func buildVerifier(ctx context.Context, cfg *config.Config) (middleware.Verifier, error) {
	var vs []middleware.Verifier
	if cfg.Auth.JWTSecret != "" {
		vs = append(vs, tokens.NewVerifier(cfg.Auth.JWTSecret))
	}
	if cfg.Auth.OIDCIssuer != "" {
		v, err := oidc.NewVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID, cfg.Auth.OIDCFoldersClaim)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	if len(vs) == 0 && cfg.Auth.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		vs = append(vs, oidc.NewInsecureVerifier())
	}
	if len(vs) == 0 {
		return nil, nil
	}
	return middleware.ChainVerifiers(vs...), nil
}

// Close releases resources in reverse order of acquisition.
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
