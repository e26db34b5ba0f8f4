package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/robfig/cron/v3"

	"support-engine/internal/common/config"
	"support-engine/internal/common/database"
	"support-engine/internal/common/logger"
	"support-engine/internal/server"
	"support-engine/internal/support/alert"
	"support-engine/internal/support/answer"
	"support-engine/internal/support/engine"
	"support-engine/internal/support/guard"
	"support-engine/internal/support/report"
	"support-engine/internal/support/retrieval"
	"support-engine/internal/support/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting support engine", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Error("postgres connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer pg.Close()

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		log.Error("elasticsearch connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	// Redis is optional: without it the guards fall back to an in-process
	// store, which is enough for a single-node deployment.
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			log.Error("redis connection failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		defer rdb.Close()
	}

	// Retrieval and synthesis
	searcher := retrieval.NewSearcher(
		es.Client,
		cfg.Search.Index,
		cfg.Search.PerQuerySize,
		cfg.Search.GlobalAppSlug,
		time.Duration(cfg.Search.Timeout)*time.Millisecond,
	)
	retriever := retrieval.NewRetriever(searcher, cfg.Search.GlobalAppSlug, log)

	var generator answer.Generator
	if cfg.Answer.Enabled {
		generator = answer.NewClient(cfg.Answer)
	}
	synth := answer.NewSynthesizer(cfg.Answer.Enabled, generator, log)

	// Persistence and guards
	ticketStore := store.NewTicketStore(pg.GetDB(), log)
	telemetryStore := store.NewTelemetryStore(pg.GetDB(), log)

	var guardStore guard.Store = guard.NewMemoryStore(cfg.Guards.DedupPruneSize)
	if rdb != nil {
		guardStore = guard.NewRedisStore(rdb.GetClient())
	}
	limiter := guard.NewRateLimiter(guardStore, cfg.Guards.RateLimit, time.Duration(cfg.Guards.RateWindow)*time.Second)
	deduper := guard.NewDeduper(guardStore, time.Duration(cfg.Guards.DedupTTL)*time.Second)

	// Alert channels
	var sesClient alert.SESService
	var snsClient alert.SNSService
	if cfg.Alerts.SNS.Enabled || cfg.Alerts.SES.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Alerts.AWSRegion))
		if err != nil {
			log.Error("aws config load failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		sesClient = ses.NewFromConfig(awsCfg)
		snsClient = sns.NewFromConfig(awsCfg)
	}
	dispatcher := alert.NewDispatcher(cfg.Alerts, ticketStore, sesClient, snsClient, log)

	eng := engine.New(retriever, synth, ticketStore, limiter, deduper, dispatcher, log)

	// Scheduled aggregation
	aggregator := report.NewAggregator(ticketStore, telemetryStore, dispatcher, generator, cfg.Triage.ClusterExamples, log)
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Triage.CronSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := aggregator.Run(ctx, cfg.Search.GlobalAppSlug, time.Duration(cfg.Triage.LookbackHours)*time.Hour); err != nil {
			log.Error("scheduled aggregation failed", map[string]interface{}{"error": err.Error()})
		}
	})
	if err != nil {
		log.Error("invalid cron schedule", map[string]interface{}{
			"schedule": cfg.Triage.CronSchedule,
			"error":    err.Error(),
		})
		os.Exit(1)
	}
	scheduler.Start()

	// HTTP surface
	health := map[string]server.HealthCheck{
		"postgres":      func(ctx context.Context) error { return pg.Ping(ctx) },
		"elasticsearch": func(ctx context.Context) error { return es.Ping() },
	}
	if rdb != nil {
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx) }
	}
	handler := server.NewHandler(
		eng, searcher, telemetryStore, aggregator,
		limiter, health,
		cfg.Server.AdminToken,
		time.Duration(cfg.Triage.LookbackHours)*time.Hour,
		log,
	)
	srv := server.New(cfg.Server, handler, log)

	go func() {
		if err := srv.Listen(); err != nil {
			log.Error("server stopped", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", nil)
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()
	if err := srv.Shutdown(); err != nil {
		log.Error("shutdown error", map[string]interface{}{"error": err.Error()})
	}
	log.Info("stopped", nil)
}
