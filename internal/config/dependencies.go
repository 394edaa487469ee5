// Package config wires the application's dependencies from configs.Config.
package config

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/configs"
	v1 "tasktracker/internal/api/v1"
	"tasktracker/internal/api/v1/handlers"
	"tasktracker/internal/auth"
	"tasktracker/internal/cache"
	"tasktracker/internal/metrics"
	"tasktracker/internal/repository"
	"tasktracker/internal/tasks"
	"tasktracker/internal/websocket"
	"tasktracker/pkg/database"
	"tasktracker/pkg/logger"
)

// Dependencies is everything the server wires together. Redis is nil
// when it is not configured; the hub then delivers in-process only and
// task reads go straight to the database.
type Dependencies struct {
	Config   configs.Config
	DB       *sql.DB
	Dialect  repository.Dialect
	Redis    *redis.Client
	Validate *validator.Validate
	Metrics  *metrics.Registry

	Users     *repository.UserRepository
	Sessions  *repository.SessionRepository
	TaskStore *repository.TaskRepository

	Hub   *websocket.Hub
	Auth  *auth.Service
	Tasks *tasks.Service
}

// Connect opens the database and, if configured, Redis. It does not touch
// the schema and builds no services; the CLI maintenance commands stop here.
func Connect(ctx context.Context, cfg configs.Config) (*Dependencies, error) {
	dialect, err := repository.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	db, err := database.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	logger.SystemLogger.Info("Database connected", zap.String("driver", cfg.DBDriver))

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if rdb != nil {
		logger.SystemLogger.Info("Redis connected", zap.String("addr", cfg.RedisAddr()))
	}

	return &Dependencies{
		Config:    cfg,
		DB:        db,
		Dialect:   dialect,
		Redis:     rdb,
		Validate:  validator.New(),
		Metrics:   metrics.NewRegistry(),
		Users:     repository.NewUserRepository(db, dialect),
		Sessions:  repository.NewSessionRepository(db),
		TaskStore: repository.NewTaskRepository(db),
	}, nil
}

// Build connects and then assembles the hub and the services.
func Build(ctx context.Context, cfg configs.Config) (*Dependencies, error) {
	d, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d.wire()
	return d, nil
}

func (d *Dependencies) wire() {
	hubOpts := []websocket.Option{websocket.WithMetrics(d.Metrics)}
	taskOpts := []tasks.Option{}
	if d.Redis != nil {
		hubOpts = append(hubOpts, websocket.WithRelay(websocket.NewRedisRelay(d.Redis, websocket.DefaultChannel)))
		taskOpts = append(taskOpts, tasks.WithCache(cache.NewTaskCache(d.Redis, d.Config.TaskCacheTTL)))
	}
	d.Hub = websocket.NewHub(hubOpts...)
	taskOpts = append(taskOpts, tasks.WithPublisher(d.Hub))

	tokens := auth.NewTokenManager(d.Config.JWTSecret, d.Config.AccessTokenTTL, d.Config.RefreshTokenTTL)
	d.Auth = auth.NewService(d.Users, d.Sessions, tokens, auth.WithMetrics(d.Metrics))
	d.Tasks = tasks.NewService(d.TaskStore, d.Users, taskOpts...)
}

// Migrate creates the schema and seeds statuses and priorities.
func (d *Dependencies) Migrate(ctx context.Context) error {
	return repository.CreateTablesIfNotExist(ctx, d.DB, d.Dialect)
}

// App returns the HTTP application serving the API and the websocket.
func (d *Dependencies) App() *fiber.App {
	h := handlers.New(d.Auth, d.Tasks, d.Validate, d.DB)
	return v1.NewApp(v1.Routes{
		Handler: h,
		Auth:    d.Auth,
		WS:      websocket.NewHandler(d.Hub, d.Auth),
		Metrics: d.Metrics,
	}, v1.AppOptions{
		CORSOrigins:     d.Config.CORSOrigins,
		RateLimitMax:    d.Config.RateLimitMax,
		RateLimitWindow: d.Config.RateLimitWindow,
	})
}

func (d *Dependencies) Close() error {
	var errs []error
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	errs = append(errs, d.DB.Close())
	return errors.Join(errs...)
}
