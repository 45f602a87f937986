// cmd/triage-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"support-triage/internal/cache"
	awsclients "support-triage/internal/common/aws"
	"support-triage/internal/common/config"
	"support-triage/internal/common/database"
	"support-triage/internal/common/logger"
	"support-triage/internal/common/observability"
	"support-triage/internal/llm"
	"support-triage/internal/notify"
	"support-triage/internal/pipeline/analyze"
	"support-triage/internal/pipeline/generate"
	"support-triage/internal/pipeline/orchestrator"
	"support-triage/internal/pipeline/retrieve"
	"support-triage/internal/pipeline/suggest"
	"support-triage/internal/server"
	"support-triage/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting triage server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("triage-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Escalation notification channels (optional) ---
	var emailSender notify.EmailSender
	var smsPublisher notify.SMSPublisher
	if cfg.Notifications.Email.Enabled {
		sesClient, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS)
		if err != nil {
			zapLog.Warn("SES client init failed, email escalations disabled", zap.Error(err))
		} else {
			emailSender = sesClient
		}
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS)
		if err != nil {
			zapLog.Warn("SNS client init failed, SMS escalations disabled", zap.Error(err))
		} else {
			smsPublisher = snsClient
		}
	}
	notifier := notify.NewEscalationNotifier(&cfg.Notifications, emailSender, smsPublisher, log)

	// --- Language model pool ---
	pool := llm.NewPool(&llm.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
		MaxTokens:   800,
		Temperature: 0.3,
	}, cfg.Pipeline.LLMPoolSize, cfg.Pipeline.LLMMaxConcurrent, log)

	// --- Pipeline stages ---
	analyzer := analyze.NewAnalyzer(pool, log)
	retriever := retrieve.NewRetriever(&retrieve.Config{
		Index:               cfg.Database.Elasticsearch.Index,
		Limit:               cfg.Pipeline.RetrievalLimit,
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
	}, esClient.Client, log)
	generator := generate.NewGenerator(pool, log)
	suggester := suggest.NewSuggester(&suggest.Config{
		MaxSuggestions: cfg.Pipeline.MaxSuggestions,
		SkipThreshold:  cfg.Pipeline.SuggestionThreshold,
	}, pool, log)

	conversations := store.NewConversationStore(pg.DB, log)
	responseCache := cache.New(redis.Client, time.Duration(cfg.Pipeline.CacheTTL)*time.Second, log)

	orc := orchestrator.New(
		&orchestrator.Config{
			AnalyzerWeight:      cfg.Pipeline.ConfidenceWeights.Analyzer,
			GeneratorWeight:     cfg.Pipeline.ConfidenceWeights.Generator,
			RedThreshold:        cfg.Pipeline.RedThreshold,
			YellowThreshold:     cfg.Pipeline.YellowThreshold,
			EarlyExitConfidence: cfg.Pipeline.EarlyExitConfidence,
			CombinedMax:         0.95,
			EagerRetrieval:      cfg.Pipeline.EagerRetrieval,
		},
		analyzer, retriever, generator, suggester, conversations, log,
		orchestrator.WithCache(responseCache, cache.Key),
		orchestrator.WithNotifier(notifier),
		orchestrator.WithObservability(obs),
	)

	srv := server.New(orc, cfg.Pipeline.BatchMaxConcurrency, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}
	zapLog.Info("Server stopped")
}
