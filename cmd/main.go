package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/cfstat/internal/adapters/cachestore"
	"github.com/okian/cfstat/internal/adapters/judge"
	"github.com/okian/cfstat/internal/app"
	"github.com/okian/cfstat/internal/config"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

const metricsReadHeaderTimeout = 5 * time.Second

func main() {
	// Optional .env for local runs; absence is fine.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Error(ctx, "failed to open cache store", logger.Error(err))
		return
	}
	defer func() { _ = store.Close() }()

	// One shared HTTP client for the whole run.
	fetcher := judge.NewClient(
		judge.WithHTTPClient(&http.Client{}),
		judge.WithBaseURL(cfg.APIBaseURL),
		judge.WithPageSize(cfg.PageSize),
		judge.WithRequestTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
	)

	opts := []app.Option{
		app.WithFetcher(fetcher),
		app.WithStore(store),
		app.WithWorkerCeiling(cfg.WorkerCeiling),
		app.WithLogger(log.Named("app")),
	}
	if floor, err := time.ParseInLocation("2006-01-02", cfg.FloorDate, time.UTC); err == nil {
		opts = append(opts, app.WithGlobalFloor(floor))
	} else {
		log.Warn(ctx, "invalid floor_date; using default", logger.String("floor_date", cfg.FloorDate))
	}
	svc := app.New(opts...)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, log, cfg.MetricsAddr)
	}

	var window *app.Window
	if cfg.WindowStart != "" {
		window, err = app.ParseWindow(cfg.WindowStart, cfg.WindowEnd)
		if err != nil {
			log.Error(ctx, "invalid window", logger.Error(err))
			return
		}
	}

	if len(cfg.Persons) > 0 {
		runPersons(ctx, log, svc, cfg, window)
		return
	}
	runHandles(ctx, log, svc, cfg, window)
}

// runHandles summarizes a flat handle list and renders the report.
func runHandles(ctx context.Context, log logger.Logger, svc *app.Service, cfg *config.Config, window *app.Window) {
	handles, err := collectHandles(cfg)
	if err != nil {
		log.Error(ctx, "failed to read handles", logger.Error(err))
		return
	}

	results, err := svc.Summarize(ctx, handles, window)
	if err != nil {
		log.Error(ctx, "summarize failed", logger.Error(err))
		return
	}

	report := app.BuildReport(results, handles)
	if err := report.Render(os.Stdout); err != nil {
		log.Error(ctx, "failed to render report", logger.Error(err))
		return
	}

	if cfg.CSVPath != "" {
		f, err := os.Create(cfg.CSVPath)
		if err != nil {
			log.Error(ctx, "failed to create csv file", logger.Error(err))
			return
		}
		defer func() { _ = f.Close() }()
		if err := report.WriteCSV(f); err != nil {
			log.Error(ctx, "failed to write csv", logger.Error(err))
			return
		}
		log.Info(ctx, "csv written", logger.String("path", cfg.CSVPath))
	}
}

// runPersons aggregates per person and logs each person's statistics.
func runPersons(ctx context.Context, log logger.Logger, svc *app.Service, cfg *config.Config, window *app.Window) {
	persons, global, err := svc.AggregateByPersons(ctx, cfg.Persons, window)
	if err != nil {
		log.Error(ctx, "aggregation failed", logger.Error(err))
		return
	}

	for _, p := range persons {
		failed := 0
		for _, a := range p.Accounts {
			if a.Failed {
				log.Warn(ctx, "account failed",
					logger.String("person", p.Name),
					logger.String("account", a.Handle),
					logger.String("error", a.Error),
				)
				failed++
			}
		}
		log.Info(ctx, "person summary",
			logger.String("person", p.Name),
			logger.Int("problems", p.Problems),
			logger.Int("rated_problems", p.RatedProblems),
			logger.Float64("avg_rating", p.AvgRating),
			logger.Int("failed_accounts", failed),
		)
	}

	log.Info(ctx, "global summary",
		logger.Int("problems", global.Problems),
		logger.Int("rated_problems", global.RatedProblems),
		logger.Float64("avg_rating", global.AvgRating),
	)
}

// collectHandles merges configured handles with the optional handles file.
func collectHandles(cfg *config.Config) ([]string, error) {
	handles := append([]string(nil), cfg.Handles...)
	if cfg.HandlesFile == "" {
		return handles, nil
	}

	f, err := os.Open(cfg.HandlesFile)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if h := strings.TrimSpace(scanner.Text()); h != "" {
			handles = append(handles, h)
		}
	}
	return handles, scanner.Err()
}

// openStore builds the configured cache store backend.
func openStore(cfg *config.Config) (cachestore.Store, error) {
	switch cfg.CacheBackend {
	case config.BackendSQLite:
		return cachestore.OpenSQLiteStore(cfg.CacheDBPath)
	case config.BackendRedis:
		return cachestore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	default:
		return cachestore.NewFileStore(cfg.CacheDir), nil
	}
}

// serveMetrics exposes the Prometheus registry while the run lasts.
func serveMetrics(ctx context.Context, log logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: metricsReadHeaderTimeout}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info(ctx, "serving metrics", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn(ctx, "metrics server stopped", logger.Error(err))
	}
}
