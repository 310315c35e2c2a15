package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/adapters/clickhouse"
	"arbiter/internal/adapters/config"
	"arbiter/internal/adapters/errors/noop"
	"arbiter/internal/adapters/errors/sentry"
	"arbiter/internal/adapters/kafka"
	"arbiter/internal/adapters/postgres"
	"arbiter/internal/adapters/redis"
	"arbiter/internal/agents"
	"arbiter/internal/analytics"
	"arbiter/internal/consumers"
	"arbiter/internal/domain/decision"
	"arbiter/internal/explain"
	"arbiter/internal/metrics"
	"arbiter/internal/policy"
	"arbiter/internal/publishers"
	pgrepo "arbiter/internal/repository/postgres"
	redisrepo "arbiter/internal/repository/redis"
	"arbiter/internal/workers"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	decisionRepo := pgrepo.NewDecisionRepository(pgClient.DB())
	experienceRepo := pgrepo.NewExperienceRepository(pgClient.DB())
	explanationRepo := pgrepo.NewExplanationRepository(pgClient.DB())
	policyModelRepo := pgrepo.NewPolicyModelRepository(pgClient.DB())
	explanationCache := redisrepo.NewExplanationCache(redisClient, cfg.Explain.CacheTTL)

	// LLM collaborator
	aiClient, err := ai.NewOpenAIClient(cfg.AI)
	if err != nil {
		log.Fatalf("Failed to init AI client: %v", err)
	}

	// Policy engine
	policyEngine, err := policy.NewEngine(cfg.Policy, experienceRepo, policyModelRepo)
	if err != nil {
		log.Fatalf("Failed to init policy engine: %v", err)
	}
	if err := policyEngine.LoadModel(ctx); err != nil {
		log.Warnf("Failed to restore policy model, starting fresh: %v", err)
	}

	// Optional analytics sink
	var sink *analytics.Sink
	if cfg.ClickHouse.Enabled {
		chClient, err := clickhouse.NewClient(cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		defer chClient.Close()

		sink = analytics.NewSink(chClient.Conn())
		sink.Start(ctx)
	}

	// Optional Kafka transport
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}

	// Orchestrator and explainability
	aiRetry := ai.RetryConfig(cfg.AI)
	registry := agents.NewRegistry(aiClient, cfg.Decision.AgentTimeout, aiRetry)
	resolver := agents.NewResolver(aiClient, cfg.Decision.ConfidenceSpreadThreshold, aiRetry)

	orchestrator := agents.NewOrchestrator(agents.Deps{
		Registry:   registry,
		Resolver:   resolver,
		Repository: decisionRepo,
		Recorder:   buildRecorder(sink, producer),
		Advisor:    policyEngine,
	}, cfg.Decision)

	explainEngine := explain.NewEngine(decisionRepo, explanationCache, explanationRepo, aiClient, aiRetry)

	var consumerList []runnableConsumer
	if cfg.Kafka.Enabled {
		newConsumer := func(topic string) *kafka.Consumer {
			return kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.GroupID,
				Topic:   topic,
			})
		}

		consumerList = append(consumerList,
			consumers.NewRequestConsumer(newConsumer(kafka.TopicDecisionRequests), orchestrator),
			consumers.NewOutcomeConsumer(newConsumer(cfg.Kafka.OutcomesTopic), policyEngine),
			consumers.NewExplanationConsumer(newConsumer(kafka.TopicExplanationRequests), producer, explainEngine),
		)
	}

	// Background workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewPolicyTrainerWorker(
		policyEngine, cfg.Workers.PolicyTrainerInterval, cfg.Workers.PolicyTrainerEnabled))
	scheduler.RegisterWorker(workers.NewModelSnapshotWorker(
		policyEngine, cfg.Workers.ModelSnapshotInterval, cfg.Workers.ModelSnapshotEnabled))

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	for _, c := range consumerList {
		c := c
		defer c.Close()
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("Consumer stopped: %v", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	log.Info("System initialized successfully")

	waitForShutdown(cancel, log)

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown incomplete: %v", err)
	}
	if sink != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := sink.Stop(stopCtx); err != nil {
			log.Warnf("Analytics sink shutdown incomplete: %v", err)
		}
		stopCancel()
	}

	// Persist the latest weights before exit
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := policyEngine.SaveModel(saveCtx); err != nil {
		log.Warnf("Failed to save policy model on shutdown: %v", err)
	}
	saveCancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := errorTracker.Flush(flushCtx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
	flushCancel()

	log.Info("Shutdown complete")
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// buildRecorder fans finished decisions out to every configured sink.
func buildRecorder(sink *analytics.Sink, producer *kafka.Producer) agents.DecisionRecorder {
	var recorders []agents.DecisionRecorder
	if sink != nil {
		recorders = append(recorders, sink)
	}
	if producer != nil {
		recorders = append(recorders, publishers.NewDecisionPublisher(producer))
	}
	if len(recorders) == 0 {
		return nil
	}
	return multiRecorder(recorders)
}

type runnableConsumer interface {
	Run(ctx context.Context) error
	Close() error
}

type multiRecorder []agents.DecisionRecorder

func (m multiRecorder) RecordDecision(ctx context.Context, d *decision.Decision) {
	for _, r := range m {
		r.RecordDecision(ctx, d)
	}
}

func serveMetrics(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	log.Infof("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("Metrics server stopped: %v", err)
	}
}

// waitForShutdown blocks until SIGINT or SIGTERM
func waitForShutdown(cancel context.CancelFunc, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")
	cancel()
}
