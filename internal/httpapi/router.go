package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"promptdeck/internal/config"
	"promptdeck/internal/guard"
	"promptdeck/internal/logging"
	"promptdeck/internal/middleware"
	"promptdeck/internal/notify"
	"promptdeck/internal/providers"
	"promptdeck/internal/queue"
	"promptdeck/internal/runner"
	"promptdeck/internal/storage"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	DB          *storage.DB
	Redis       *storage.RedisClient
	Guard       *guard.Guard
	Runner      *runner.Runner
	Archive     logging.Sink
	OutputQueue *storage.OutputQueueWorker
	Notify      *notify.WebhookWorker
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	// Initialize database
	db, err := storage.NewDB(storage.DBConfig{
		DSN:                cfg.Database.URL,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.Database.ConnMaxIdleTime,
		WorkspaceCacheSize: cfg.Cache.WorkspaceCacheSize,
		WorkspaceCacheTTL:  cfg.Cache.WorkspaceCacheTTL,
		ToolCacheSize:      cfg.Cache.ToolCacheSize,
		ToolCacheTTL:       cfg.Cache.ToolCacheTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize Redis client
	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize repositories
	workspaceRepo := storage.NewWorkspaceRepository(db)
	taskRepo := storage.NewTaskRepository(db)
	outputRepo := storage.NewOutputRepository(db)
	budgetRepo := storage.NewBudgetRepository(db)
	guardEventRepo := storage.NewGuardEventRepository(db)

	useRedis := cfg.Redis.Address != ""

	// Output queue carries completed runs into Postgres
	outputQueue, outputDLQ, outputQueueCfg, err := buildQueue("outputs", cfg, useRedis)
	if err != nil {
		return nil, nil, err
	}
	outputWorker := storage.NewOutputQueueWorker(outputQueue, outputDLQ, outputRepo, outputQueueCfg)
	outputWorker.Start(context.Background())

	// Soft-warning notifications
	var notifier guard.Notifier
	var notifyWorker *notify.WebhookWorker
	if cfg.Notify.WebhookURL != "" {
		notifyQueue, _, notifyQueueCfg, err := buildQueue("notifications", cfg, useRedis)
		if err != nil {
			return nil, nil, err
		}
		notifier = notify.NewWebhookNotifier(notifyQueue)
		notifyWorker = notify.NewWebhookWorker(notifyQueue, cfg.Notify.WebhookURL, notifyQueueCfg)
		notifyWorker.Start(context.Background())
	} else {
		notifier = notify.NewLogNotifier()
	}

	// Guard decision archive
	var archive logging.Sink = logging.NewNoopSink()
	if cfg.Archive.Enabled && cfg.Archive.S3Bucket != "" {
		writer, err := logging.NewS3Writer(context.Background(),
			cfg.Archive.S3Bucket, cfg.Archive.S3Region, cfg.Archive.S3Prefix, cfg.Archive.Instance)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize decision archive: %w", err)
		}
		archive = logging.NewS3Sink(logging.S3SinkConfig{
			BufferSize:    cfg.Archive.BufferSize,
			FlushSize:     cfg.Archive.FlushSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, writer)
	}

	// Run guard
	g := guard.New(outputRepo, budgetRepo, guard.Options{
		Audit:      guardEventRepo,
		Notifier:   notifier,
		PlanLimits: cfg.PlanLimits(),
		UpgradeURL: cfg.Guard.UpgradeCTAURL,
	})

	// AI provider
	provider, err := providers.NewOpenAIProvider(cfg.Provider.OpenAIAPIKey, cfg.Provider.OpenAIBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	// Runner
	run := runner.New(g, taskRepo, outputWorker, provider, runner.Options{
		Archive:         archive,
		ProviderTimeout: cfg.Provider.RequestTimeout,
		DefaultModel:    cfg.Provider.DefaultModel,
	})

	deps := &Dependencies{
		DB:          db,
		Redis:       redisClient,
		Guard:       g,
		Runner:      run,
		Archive:     archive,
		OutputQueue: outputWorker,
		Notify:      notifyWorker,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg, workspaceRepo, taskRepo, budgetRepo, guard.NewAggregator(outputRepo))

	return mux, deps, nil
}

// buildQueue creates a queue and DLQ pair, Redis-backed when available.
func buildQueue(name string, cfg *config.Config, useRedis bool) (queue.Queue, queue.DeadLetterQueue, *queue.Config, error) {
	queueCfg := queue.DefaultConfig(name)
	queueCfg.UseRedis = useRedis
	queueCfg.BatchSize = 100
	queueCfg.BatchTimeout = 5 * time.Second
	queueCfg.MaxRetries = 3
	queueCfg.RetryBackoff = 1 * time.Second

	if !useRedis {
		return queue.NewMemoryQueue(queueCfg), queue.NewMemoryDeadLetterQueue(), queueCfg, nil
	}

	queueCfg.RedisAddr = cfg.Redis.Address
	queueCfg.RedisPassword = cfg.Redis.Password
	queueCfg.RedisDB = cfg.Redis.DB

	q, err := queue.NewRedisQueue(queueCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s queue: %w", name, err)
	}
	dlq, err := queue.NewRedisDeadLetterQueue(queueCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s DLQ: %w", name, err)
	}
	return q, dlq, queueCfg, nil
}

// registerRoutes wires all HTTP routes into the mux.
func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config,
	workspaces WorkspaceStore, tasks TaskGetter, budgets BudgetStore, usage UsageReader) {

	jwtMiddleware := middleware.JWTMiddleware(cfg.JWTSecret)

	runHandler := NewRunHandler(workspaces, tasks, deps.Runner)
	budgetsHandler := NewBudgetsHandler(budgets)
	usageHandler := NewUsageHandler(usage, nil)

	mux.Handle("/v1/runs", jwtMiddleware(runHandler))
	mux.Handle("/v1/budgets", jwtMiddleware(budgetsHandler))
	mux.Handle("/v1/budgets/", jwtMiddleware(budgetsHandler))
	mux.Handle("/v1/usage", jwtMiddleware(usageHandler))

	// Health check endpoint - public
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.DB.Health(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := deps.Redis.Ping(ctx); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
