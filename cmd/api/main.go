package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-assistant/internal/config"
	"story-assistant/internal/domain"
	"story-assistant/internal/fireflies"
	apihttp "story-assistant/internal/http"
	"story-assistant/internal/jira"
	"story-assistant/internal/llm"
	"story-assistant/internal/logging"
	"story-assistant/internal/service"
	"story-assistant/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OTelEndpoint,
		Headers:        cfg.OTelHeaders,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	}

	llmClient := llm.NewOpenAIClient(llm.Options{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}, logger)
	if cfg.LLMAPIKey == "" {
		logger.Warn("llm api key not configured")
	}

	var transcripts fireflies.Source = fireflies.NewClient(cfg.FirefliesBaseURL, cfg.FirefliesAPIKey, nil, logger)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, transcript cache disabled", zap.Error(err))
		} else {
			transcripts = fireflies.NewCachedClient(transcripts, redisClient, cfg.TranscriptCacheTTL, logger)
		}
		cancel()
	}

	jiraClient := jira.NewClient(jira.Config{
		BaseURL:    cfg.JiraBaseURL,
		Email:      cfg.JiraEmail,
		APIToken:   cfg.JiraAPIToken,
		ProjectKey: cfg.JiraProjectKey,
		IssueType:  cfg.JiraIssueType,
	}, nil, logger)

	intents := service.NewIntentRouter(llmClient, jiraClient, logger)
	intents.OnGenerated(func(ctx context.Context, stories []domain.UserStory) {
		for _, s := range stories {
			logger.Debug("generated story", zap.String("summary", s.Summary()), zap.Strings("tags", s.Tags))
		}
	})
	conversation := service.NewConversationService(llmClient, logger)

	router := apihttp.NewRouter(logger, apihttp.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ServiceName:    cfg.OTelServiceName,
		Tracing:        tel != nil,
	}, apihttp.Handlers{
		Chat:        apihttp.NewChatHandler(logger, intents, conversation, cfg.CORSAllowedOrigins),
		Transcripts: apihttp.NewTranscriptHandler(logger, transcripts),
		Issues:      apihttp.NewIssueHandler(logger, jiraClient),
		Stories:     apihttp.NewStoryHandler(logger),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel shutdown error", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
}
