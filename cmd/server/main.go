package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/unrolled/secure"

	"github.com/segyhp/agent-wallet/internal/client"
	"github.com/segyhp/agent-wallet/internal/config"
	"github.com/segyhp/agent-wallet/internal/handler"
	"github.com/segyhp/agent-wallet/internal/metrics"
	"github.com/segyhp/agent-wallet/internal/repository"
	"github.com/segyhp/agent-wallet/internal/service"
	"github.com/segyhp/agent-wallet/internal/session"
	"github.com/segyhp/agent-wallet/pkg/logger"
	"github.com/segyhp/agent-wallet/pkg/response"
)

func main() {
	// Local development convenience; real deployments inject the environment.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	// Settlement journal is optional
	var (
		db      *sqlx.DB
		journal repository.JournalRepository
	)
	if cfg.JournalEnabled() {
		db, err = initDB(cfg)
		if err != nil {
			log.Error("failed to initialize database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		journal = repository.NewJournalRepository(db)
	} else {
		log.Info("DATABASE_URL not set, settlement journal disabled")
	}

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	portal := client.NewPortalClient(cfg.Portal.BaseURL, cfg.Portal.APIKey, cfg.Portal.Timeout)
	m := metrics.New()

	registry := service.NewWorkflowRegistry(service.WorkflowDeps{
		Agents:         portal,
		Proposals:      portal,
		Settlements:    portal,
		Journal:        journal,
		Metrics:        m,
		Logger:         log,
		InvoiceEnabled: cfg.Business.InvoiceEnabled,
	}, service.LedgerDeps{
		Agents:    portal,
		Proposals: portal,
		Cache:     session.NewAgentCache(redisClient, cfg.Redis.AgentCacheTTL),
		Window:    service.NewEligibilityWindow(cfg.Business.EligibilityWindowDays, nil),
		Flow:      cfg.Business.WalletFlow,
		Logger:    log,
	}, service.WithIdleTTL(cfg.Server.WorkflowIdleTTL))
	batch := service.NewBatchSettlement(portal, journal, registry, m, log)

	walletHandler := handler.NewWalletHandler(registry, batch, log)
	workflowHandler := handler.NewWorkflowHandler(registry, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	// Evict abandoned workflow sessions
	evictor := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := evictor.AddFunc("@every 1m", func() { registry.EvictIdle() }); err != nil {
		log.Error("error scheduling workflow eviction", slog.Any("error", err))
		os.Exit(1)
	}
	evictor.Start()
	defer evictor.Stop()

	// Setup routes
	router := setupRoutes(cfg, log, m, walletHandler, workflowHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", slog.String("addr", server.Addr), slog.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}

	log.Info("server exited", slog.Int("open_workflows", registry.Len()))
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(cfg *config.Config, log *slog.Logger, m *metrics.Metrics, walletHandler *handler.WalletHandler, workflowHandler *handler.WorkflowHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      cfg.IsDevelopment(),
	})

	router.Use(
		response.LoggingMiddleware(log),
		m.Middleware,
		secureMiddleware.Handler,
		response.CORSMiddleware,
	)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	// API routes
	limited := router.NewRoute().Subrouter()
	limited.Use(httprate.Limit(cfg.Server.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	handler.RegisterRoutes(limited, walletHandler, workflowHandler)

	return router
}
