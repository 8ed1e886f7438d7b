// Command server starts the PayGuard risk scoring API.
//
// Usage:
//
//	go run ./cmd/server [flags]
//
// Flags:
//
//	-port   HTTP port to listen on (overrides PORT, default: 8080)
//	-lists  Path to a JSON file of list entries to load on startup (default: data/lists.json)
//
// Everything else is configured through the environment; see internal/config.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"payguard/risk-api/internal/analyzer"
	"payguard/risk-api/internal/api"
	"payguard/risk-api/internal/config"
	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/health"
	"payguard/risk-api/internal/logging"
	"payguard/risk-api/internal/metrics"
	"payguard/risk-api/internal/model"
	"payguard/risk-api/internal/ratelimit"
	"payguard/risk-api/internal/store"
	"payguard/risk-api/internal/traces"
	"payguard/risk-api/internal/velocity"
	"payguard/risk-api/internal/webhook"
)

func main() {
	port := flag.Int("port", 0, "HTTP port (overrides PORT)")
	listsFile := flag.String("lists", "data/lists.json", "path to list entries JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Port = *port
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Model ─────────────────────────────────────────────────────────────────
	m, err := model.Load(cfg.ModelPath)
	if err != nil {
		logger.Error("model not loaded", "path", cfg.ModelPath, "error", err)
		os.Exit(1)
	}
	metrics.ModelInfo.WithLabelValues(m.Version).Set(1)
	logger.Info("model loaded", "name", m.Name, "version", m.Version, "features", len(m.Features))

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, m.Version, logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}

	checks := health.NewRegistry()
	checks.Register("model", func(context.Context) health.Status {
		return health.Status{Healthy: true, Detail: m.Version}
	})

	// ── Counters: Redis when configured, otherwise in-process ─────────────────
	rlCfg := ratelimit.Config{
		Limit:           cfg.RateLimitRequests,
		Window:          cfg.RateLimitWindow,
		CleanupInterval: cfg.RateLimitWindow,
	}
	var (
		counter velocity.Counter
		limiter ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis unavailable", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		counter = velocity.NewRedis(client, cfg.VelocityWindow)
		limiter = ratelimit.NewRedis(client, rlCfg)
		checks.Register("redis", health.Ping("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		logger.Info("shared counters enabled", "backend", "redis")
	} else {
		mem := velocity.NewMemory(cfg.VelocityWindow)
		go mem.Run(ctx, cfg.VelocitySweepInterval, logger)
		counter = mem

		rl := ratelimit.NewMemory(rlCfg)
		defer rl.Stop()
		limiter = rl
		logger.Info("shared counters disabled, using in-process state")
	}

	// ── Audit log: Postgres when configured, otherwise an in-memory ring ──────
	var audit store.AuditStore
	if cfg.DatabaseURL != "" {
		if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		checks.Register("postgres", health.Ping("postgres", pg.Ping))
		audit = pg
	} else {
		audit = store.NewMemory(cfg.AuditCapacity)
	}

	lists := store.NewLists()
	if err := loadLists(ctx, lists, *listsFile); err != nil {
		// Non-fatal: the API works fine with empty lists.
		logger.Warn("list entries not loaded", "file", *listsFile, "reason", err.Error())
	}

	// ── Wire dependencies ─────────────────────────────────────────────────────
	deps := analyzer.Deps{
		Model:    m,
		Tracker:  velocity.NewTracker(counter, cfg.VelocitySaturation),
		Audit:    audit,
		Lists:    lists,
		Logger:   logger,
		BatchMax: cfg.BatchMax,
	}
	if n := webhook.New(cfg.AlertWebhookURLs, logger); n.Enabled() {
		deps.Alerts = n
	}
	a, err := analyzer.New(deps)
	if err != nil {
		logger.Error("analyzer init failed", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(a, audit, lists)
	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY not set, audit and list routes are disabled")
	}
	router := api.NewRouter(handler, limiter, cfg.AdminAPIKey, checks, logger)

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	a.Wait()
	if err := shutdownTraces(shutdownCtx); err != nil {
		logger.Error("trace flush failed", "error", err)
	}
	logger.Info("server stopped")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// loadLists reads a JSON array of list entries so the service starts with
// its known good and bad actors.
func loadLists(ctx context.Context, lists store.ListStore, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	var entries []domain.ListEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	now := time.Now().UTC()
	var loaded, skipped int
	for i := range entries {
		e := &entries[i]
		if e.Value == "" || (e.ListType != domain.ListWhitelist && e.ListType != domain.ListBlacklist) {
			skipped++
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if err := lists.Add(ctx, e); err != nil {
			return err
		}
		loaded++
	}

	slog.Info("list entries loaded", "file", filePath, "loaded", loaded, "skipped", skipped)
	return nil
}
