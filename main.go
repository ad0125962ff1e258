package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/auth"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/blob"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/config"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/db"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/gelf"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/grading"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/handler"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/metric"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/repository"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/router"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/service"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/validation"
)

const serviceName = "oxiplan"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	var out io.Writer = os.Stderr
	closeFn := func() {}

	// GELF UDP logging
	if cfg.Log.GelfAddr != "" {
		w, err := gelf.New(cfg.Log.GelfAddr, serviceName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: GELF init failed: %v\n", err)
		} else {
			out = io.MultiWriter(os.Stderr, w)
			closeFn = func() { w.Close() }
		}
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	if cfg.Log.GelfAddr != "" {
		logger.Info("GELF logging enabled", "addr", cfg.Log.GelfAddr)
	}
	return logger, closeFn
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metric.New()

	docs, blobs, closeBackend, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	docs = store.Instrument(docs, cfg.Store.Driver, m)

	mode, err := service.ParseActivationMode(cfg.Templates.ActivationMode)
	if err != nil {
		return err
	}
	engine := validation.New(newGrader(cfg, m, logger),
		validation.WithParallelism(cfg.Grading.Parallelism),
		validation.WithLogger(logger),
		validation.WithMetrics(m),
	)

	// Services
	authSvc := service.NewAuthService(docs, cfg.Auth.JWTSecret)
	templateSvc := service.NewTemplateService(docs, mode, logger)
	planSvc := service.NewPlanService(docs, engine, blobs, digestKey(cfg.Auth.JWTSecret), m, logger)

	// Router
	r := router.New(cfg.Auth.JWTSecret, authSvc, logger, m.Handler(),
		handler.NewAuthHandler(authSvc),
		handler.NewTemplateHandler(templateSvc),
		handler.NewPlanHandler(planSvc),
		handler.NewBlobHandler(blobs),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("OxiPlan server starting", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver, "grader", cfg.Grading.Provider)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openBackends connects the document and blob stores for the configured
// driver. OxiDB collections and the report bucket are created in the
// background so the HTTP server starts immediately.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, blob.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverOxiDB:
		pool, err := db.NewPool(ctx, cfg.OxiDB.Host, cfg.OxiDB.Port, cfg.OxiDB.PoolSize, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to OxiDB: %w", err)
		}
		logger.Info("connected to OxiDB", "host", cfg.OxiDB.Host, "port", cfg.OxiDB.Port, "pool_size", cfg.OxiDB.PoolSize)

		docs := store.NewOxiDB(pool)
		blobs := blob.NewOxiDB(pool, cfg.Blob.Bucket, cfg.Blob.PublicBaseURL)
		go func() {
			start := time.Now()
			logger.Info("background init: creating collections")
			if err := docs.EnsureCollections(ctx, repository.Collections...); err != nil {
				logger.Warn("background init: collections", "error", err)
			}
			if err := docs.EnsureIndexes(ctx, repository.Indexes); err != nil {
				logger.Warn("background init: indexes", "error", err)
			}
			logger.Info("background init: ensuring report bucket")
			if err := blobs.EnsureBucket(ctx); err != nil {
				logger.Warn("background init: bucket", "error", err)
			}
			logger.Info("background init: done", "duration", time.Since(start).Round(time.Millisecond))
		}()
		return docs, blobs, pool.Close, nil

	case config.DriverSQLite:
		docs, err := store.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("opened SQLite store", "path", cfg.SQLite.Path)
		// Reports stay in memory; the SQLite driver is for single-node use.
		return docs, blob.NewMemory(cfg.Blob.PublicBaseURL), func() { docs.Close() }, nil

	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), blob.NewMemory(cfg.Blob.PublicBaseURL), func() {}, nil
	}
}

func newGrader(cfg *config.Config, m *metric.Metrics, logger *slog.Logger) grading.Grader {
	heuristic := grading.Instrument(grading.NewHeuristic(cfg.Grading.MinAnswerChars), config.GraderHeuristic, m)
	if cfg.Grading.Provider != config.GraderOpenAI {
		return heuristic
	}
	llm := grading.Instrument(grading.NewOpenAI(cfg.Grading.OpenAIKey, cfg.Grading.OpenAIModel, cfg.Grading.Timeout), config.GraderOpenAI, m)
	if !cfg.Grading.Fallback {
		return llm
	}
	return grading.WithFallback(llm, heuristic, logger)
}

// digestKey separates the validation digest key from the token signing key.
func digestKey(secret string) []byte {
	return auth.DeriveKey(secret, "plan-validation-digest")
}
