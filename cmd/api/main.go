package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/application/stream"
	"github.com/civic-alerts/internal/application/throttle"
	"github.com/civic-alerts/internal/application/verification"
	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/infrastructure/dynamo"
	jwtinfra "github.com/civic-alerts/internal/infrastructure/jwt"
	redisinfra "github.com/civic-alerts/internal/infrastructure/redis"
	s3infra "github.com/civic-alerts/internal/infrastructure/s3"
	"github.com/civic-alerts/internal/infrastructure/smtp"
	"github.com/civic-alerts/internal/infrastructure/sns"
	"github.com/civic-alerts/internal/infrastructure/webhook"
	transporthttp "github.com/civic-alerts/internal/transport/http"
	"github.com/joho/godotenv"
)

const sweepInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if cfg.AppEnv == "development" {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	// Ledger entries only matter inside the longest window.
	retention := time.Duration(max(cfg.PhoneThrottle.WindowSeconds, cfg.EmailThrottle.WindowSeconds)) * time.Second
	var ledger throttle.LedgerStore
	switch cfg.ThrottleStore {
	case "redis":
		rdb := redisinfra.NewClient(cfg)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		ledger = redisinfra.NewLedgerStore(rdb, retention)
	case "memory":
		slog.Warn("throttle ledger is process-local; limits are not shared across instances")
		mem := throttle.NewMemoryLedger(retention)
		go mem.Run(ctx, sweepInterval)
		ledger = mem
	default:
		ledger = dynamo.NewThrottleRepo(dynamoClient, cfg.DynamoTables.Throttles, retention)
	}

	phoneCodes := verification.NewStore("phone", cfg.PhoneCodeTTL)
	emailCodes := verification.NewStore("email", cfg.EmailCodeTTL)
	go phoneCodes.Run(ctx, sweepInterval)
	go emailCodes.Run(ctx, sweepInterval)

	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional, graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	issueFeed := stream.NewIssueFeed(cfg.StreamBuffer)
	notificationFeed := stream.NewNotificationFeed(cfg.StreamBuffer)

	dispatcherDeps := notification.DispatcherDeps{
		Users:          userRepo,
		Records:        notificationRepo,
		Feed:           notificationFeed,
		Mailer:         mailer,
		SMS:            smsSender,
		Webhook:        webhook.NewClient(cfg.WebhookTimeout),
		WebhookTimeout: cfg.WebhookTimeout,
	}
	if cfg.WebhookArchiveBucket != "" {
		dispatcherDeps.Archive = s3infra.NewStore(s3infra.NewClient(cfg), cfg.WebhookArchiveBucket)
	}
	dispatcher := notification.NewDispatcher(dispatcherDeps)

	deps := &transporthttp.Deps{
		UserRepo:         userRepo,
		IssueRepo:        dynamo.NewIssueRepo(dynamoClient, cfg.DynamoTables.Issues),
		NotificationRepo: notificationRepo,
		PhoneLimiter:     throttle.NewLimiter("phone", ledger, cfg.PhoneThrottle),
		EmailLimiter:     throttle.NewLimiter("email", ledger, cfg.EmailThrottle),
		PhoneCodes:       phoneCodes,
		EmailCodes:       emailCodes,
		Mailer:           mailer,
		SMSSender:        smsSender,
		Dispatcher:       dispatcher,
		IssueFeed:        issueFeed,
		NotificationFeed: notificationFeed,
		JWTProvider:      jwtProvider,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, throttle=%s)", cfg.AppPort, cfg.AppEnv, cfg.ThrottleStore)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	// Streams end with their request contexts; cancelling ctx stops the sweepers.
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		log.Printf("webhook deliveries still in flight: %v", err)
	}
	log.Println("Server stopped")
}
