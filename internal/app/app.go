package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/redis"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/shorturl/internal/config"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/internal/metrics"
	"github.com/vadimbarashkov/shorturl/internal/usecase"
	"github.com/vadimbarashkov/shorturl/migrations"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shorturl/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/shorturl/pkg/postgres"
)

const shutdownTimeout = 10 * time.Second

type urlRepository interface {
	FindByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	FindMaxShortCode(ctx context.Context) (int64, error)
	Insert(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error)
	FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error)
}

// NewLogger builds the request logger; its embedded slog.Logger is shared by
// the rest of the application.
func NewLogger(cfg *config.Config) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger("shorturl", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		LogLevel: level,
		Concise:  cfg.Env == config.EnvDev,
	})
}

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	urlRepo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeRepo()

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		urlRepo = redis.NewURLRepository(urlRepo, client,
			redis.WithTTL(cfg.Redis.TTL),
			redis.WithLogger(logger.Logger),
		)
	}

	tracer, shutdownTracer, err := newTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := shutdownTracer(ctx); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("op", op), slog.Any("err", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	urlUseCase := usecase.New(urlRepo,
		usecase.WithMaxAttempts(cfg.Allocation.MaxAttempts),
		usecase.WithLogger(logger.Logger),
		usecase.WithTracer(tracer),
		usecase.WithMetrics(metrics.New(reg)),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, urlUseCase, reg),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		logger.Info("server stopped")

		return nil
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config) (urlRepository, func(), error) {
	const op = "app.openRepository"

	switch cfg.Storage {
	case config.StorageMemory:
		return memory.NewURLRepository(), func() {}, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to open sqlite database: %w", op, err)
		}

		return sqlite.NewURLRepository(db), closeDB(db), nil

	case config.StoragePostgres:
		db, err := pgpkg.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		if err := pgpkg.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		return postgres.NewURLRepository(db), closeDB(db), nil

	default:
		return nil, nil, fmt.Errorf("%s: %w: %q", op, config.ErrUnknownStorage, cfg.Storage)
	}
}

func closeDB(db *sqlx.DB) func() {
	return func() {
		db.Close()
	}
}
