package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"seo-analysis-backend/internal/analyses"
	"seo-analysis-backend/internal/credits"
	"seo-analysis-backend/internal/provider"
	"seo-analysis-backend/internal/provider/dataforseo"
	"seo-analysis-backend/internal/services/health"
	"seo-analysis-backend/internal/shared/config"
	"seo-analysis-backend/internal/shared/server"
	"seo-analysis-backend/internal/shared/storage/db"
	"seo-analysis-backend/internal/shared/storage/kv"
	"seo-analysis-backend/internal/shared/storage/object"
	localstore "seo-analysis-backend/internal/shared/storage/object/local"
	s3store "seo-analysis-backend/internal/shared/storage/object/s3"
	"seo-analysis-backend/internal/shared/telemetry"
)

const redisKeyPrefix = "seo:credits"

// App holds shared dependencies and the HTTP router.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Redis           *redis.Client
	Archive         object.ObjectStore
	Gateway         provider.Gateway
	AnalysesRepo    analyses.Repo
	CreditsService  *credits.Service
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	CreditsHandler  *credits.Handler
	Health          *health.Service
}

// Build connects backing services and wires handlers into the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	app := &App{Config: cfg, Health: health.NewService(2 * time.Second)}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Health.Register("database", func(ctx context.Context) error {
			return db.Ping(ctx, sqlDB, 0)
		})
	}

	if app.Archive, err = buildArchive(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.CreditsService, err = buildCredits(ctx, app); err != nil {
		app.Close()
		return nil, err
	}
	if app.Gateway, err = buildGateway(cfg); err != nil {
		app.Close()
		return nil, err
	}

	if app.DB != nil {
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		app.AnalysesRepo = analyses.NewMemoryRepo()
	}
	app.AnalysesService = &analyses.Service{
		Repo:     app.AnalysesRepo,
		Credits:  app.CreditsService,
		Gateway:  app.Gateway,
		Archive:  app.Archive,
		Defaults: analyses.RequestDefaults{Language: cfg.ProviderLanguage, Location: cfg.ProviderLocation},
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService, cfg.PollWindow)
	app.CreditsHandler = credits.NewHandler(app.CreditsService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		CreditsHandler:  app.CreditsHandler,
		Health:          app.Health,
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_missing", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"fallback": "memory", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "none":
		return nil, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildCredits(ctx context.Context, app *App) (*credits.Service, error) {
	backend := app.Config.CreditsBackend
	if backend == "auto" || backend == "" {
		backend = "memory"
		if app.DB != nil {
			backend = "postgres"
		}
	}

	switch backend {
	case "postgres":
		if app.DB == nil {
			return nil, fmt.Errorf("CREDITS_BACKEND=postgres requires DATABASE_URL")
		}
		return credits.NewPostgresService(credits.NewPGStore(app.DB)), nil
	case "redis":
		if strings.TrimSpace(app.Config.RedisURL) == "" {
			return nil, fmt.Errorf("CREDITS_BACKEND=redis requires REDIS_URL")
		}
		client, err := kv.Connect(ctx, app.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		app.Redis = client
		app.Health.Register("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return credits.NewRedisService(credits.NewRedisStore(client, redisKeyPrefix)), nil
	default:
		if !isDevLike(app.Config.Env) {
			telemetry.Warn("bootstrap.credits_in_memory", map[string]any{"env": app.Config.Env})
		}
		return credits.NewService(), nil
	}
}

func buildGateway(cfg config.Config) (provider.Gateway, error) {
	if strings.TrimSpace(cfg.ProviderLogin) == "" || strings.TrimSpace(cfg.ProviderPassword) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.provider_missing", map[string]any{"fallback": "placeholder"})
			return provider.Placeholder{}, nil
		}
		return nil, fmt.Errorf("PROVIDER_LOGIN and PROVIDER_PASSWORD are required")
	}
	client, err := dataforseo.NewClient(dataforseo.Config{
		BaseURL:   cfg.ProviderBaseURL,
		Login:     cfg.ProviderLogin,
		Password:  cfg.ProviderPassword,
		Timeout:   cfg.ProviderTimeout,
		RateLimit: cfg.ProviderRateLimit,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
