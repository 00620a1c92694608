package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/segyhp/agent-wallet/internal/client"
	"github.com/segyhp/agent-wallet/internal/config"
	"github.com/segyhp/agent-wallet/internal/service"
	"github.com/segyhp/agent-wallet/internal/session"
	"github.com/segyhp/agent-wallet/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	log.Info("starting eligibility scheduler", slog.String("spec", cfg.Scheduler.Spec), slog.Int("agents", len(cfg.Scheduler.AgentIDs)))

	if len(cfg.Scheduler.AgentIDs) == 0 {
		log.Warn("SCHEDULER_AGENT_IDS is empty, sweeps will do nothing")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	portal := client.NewPortalClient(cfg.Portal.BaseURL, cfg.Portal.APIKey, cfg.Portal.Timeout)
	registry := service.NewWorkflowRegistry(service.WorkflowDeps{Logger: log}, service.LedgerDeps{
		Agents:    portal,
		Proposals: portal,
		Cache:     session.NewAgentCache(redisClient, cfg.Redis.AgentCacheTTL),
		Window:    service.NewEligibilityWindow(cfg.Business.EligibilityWindowDays, nil),
		Flow:      cfg.Business.WalletFlow,
		Logger:    log,
	})
	sweep := service.NewEligibilitySweep(registry, cfg.Scheduler.ExpiryWarningDays, log)

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err = c.AddFunc(cfg.Scheduler.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Portal.Timeout*4)
		defer cancel()
		sweep.Run(ctx, cfg.Scheduler.AgentIDs)
	})
	if err != nil {
		log.Error("error scheduling eligibility sweep", slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()
	log.Info("scheduler started")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}
