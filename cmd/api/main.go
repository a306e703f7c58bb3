package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/bookline-ai/bookline/cmd/mainconfig"
	"github.com/bookline-ai/bookline/internal/availability"
	"github.com/bookline-ai/bookline/internal/chat"
	appconfig "github.com/bookline-ai/bookline/internal/config"
	"github.com/bookline-ai/bookline/internal/engine"
	"github.com/bookline-ai/bookline/internal/events"
	"github.com/bookline-ai/bookline/internal/extraction"
	"github.com/bookline-ai/bookline/internal/httpapi"
	"github.com/bookline-ai/bookline/internal/notify"
	"github.com/bookline-ai/bookline/internal/observability/metrics"
	"github.com/bookline-ai/bookline/internal/profile"
	"github.com/bookline-ai/bookline/internal/store"
	"github.com/bookline-ai/bookline/internal/transition"
	"github.com/bookline-ai/bookline/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookline API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	engineMetrics := metrics.NewEngineMetrics(nil)

	// Business profiles: DynamoDB source behind a Redis cache.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
	}
	profileSource := profile.NewDynamoSource(dynamoClient, cfg.ProfilesTable)
	profiles := profile.NewCachedProvider(profileSource, redisClient, cfg.ProfileCacheTTL, logger)

	appointmentStore := store.NewAppointmentStore(dynamoClient, cfg.AppointmentsTable, logger).
		WithMetrics(engineMetrics)
	checker := availability.NewChecker(profiles, appointmentStore, logger)

	// Extraction provider selection.
	var llmClient extraction.LLMClient
	modelID := cfg.GeminiModelID
	switch cfg.ExtractionProvider {
	case "bedrock":
		llmClient = extraction.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		modelID = cfg.BedrockModelID
	default:
		geminiClient, err := extraction.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create Gemini client", "error", err)
			os.Exit(1)
		}
		defer geminiClient.Close()
		llmClient = geminiClient
	}
	extractor := extraction.NewExtractor(llmClient, modelID, cfg.ExtractionProvider, logger, engineMetrics)

	dispatcher := events.NewDispatcher(logger)

	turnEngine := engine.New(extractor, checker, appointmentStore, dispatcher, logger, engineMetrics).
		WithExtractionTimeout(cfg.ExtractionTimeout)
	transitions := transition.NewService(appointmentStore, dispatcher, logger, engineMetrics)

	// Chat history is optional; without a database turns still work, just
	// without persisted transcripts or chat notices.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
	}
	chatStore := chat.NewMessageStore(db)

	emailSender := setupEmailSender(cfg, awsCfg, logger)
	smsSender := setupSMSSender(cfg, awsCfg, logger)

	notifier := notify.NewService(chatStore, emailSender, smsSender, profiles, logger, engineMetrics)
	dispatcher.Subscribe(notifier)

	handler := httpapi.NewHandler(turnEngine, transitions, appointmentStore, chatStore, logger)
	router := httpapi.NewRouter(&httpapi.Config{
		Logger:         logger,
		Handler:        handler,
		BusinessSecret: cfg.BusinessJWTSecret,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight notifications finish before exiting.
	dispatcher.Drain()

	logger.Info("server stopped")
}

// setupEmailSender picks the email channel: explicit provider wins, then
// whichever of SendGrid/SES is configured, then a logging stub.
func setupEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch {
	case cfg.EmailProvider == "ses" || (cfg.EmailProvider == "auto" && cfg.SendGridAPIKey == "" && cfg.SESFromEmail != ""):
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	case cfg.SendGridAPIKey != "":
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	default:
		return notify.NewStubEmailSender(logger)
	}
}

// setupSMSSender enqueues SMS through SQS when a queue is configured.
func setupSMSSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.SMSSender {
	if cfg.SMSQueueURL != "" {
		return notify.NewSQSSMSSender(sqs.NewFromConfig(awsCfg), cfg.SMSQueueURL, logger)
	}
	return notify.NewStubSMSSender(logger)
}
