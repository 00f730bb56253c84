package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/qr-nexus/internal/config"
	"github.com/qr-nexus/internal/infrastructure/dynamo"
	jwtinfra "github.com/qr-nexus/internal/infrastructure/jwt"
	s3infra "github.com/qr-nexus/internal/infrastructure/s3"
	"github.com/qr-nexus/internal/infrastructure/sns"
	transporthttp "github.com/qr-nexus/internal/transport/http"
)

// eventQueueSize caps SNS publishes in flight; later events are dropped.
const eventQueueSize = 256

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	if err := cfg.Validate(); err != nil {
		fatal("configuration rejected", err)
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		fatal("dynamodb client", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		fatal("jwt provider", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		fatal("s3 client", err)
	}

	publisher, err := sns.NewPublisher(ctx, cfg)
	if err != nil {
		fatal("sns publisher", err)
	}
	events := sns.NewAsync(publisher, cfg.StoreTimeout, eventQueueSize)

	tables := cfg.DynamoTables
	svcs := transporthttp.NewServices(cfg, &transporthttp.Deps{
		UserRepo:     dynamo.NewUserRepo(dynamoClient, tables.Users),
		SessionRepo:  dynamo.NewSessionRepo(dynamoClient, tables.Sessions),
		IdentityRepo: dynamo.NewIdentityRepo(dynamoClient, tables.Identities, tables.Users),
		CodeRepo:     dynamo.NewCodeRepo(dynamoClient, tables.Codes, tables.Identities),
		StatRepo:     dynamo.NewScanStatRepo(dynamoClient, tables.ScanStats),
		EventRepo:    dynamo.NewEventRepo(dynamoClient, tables.EngagementEvents),
		PointsRepo:   dynamo.NewPointsRepo(dynamoClient, tables.UserPoints),
		ReferralRepo: dynamo.NewReferralRepo(dynamoClient, tables.ReferralConversions, tables.UserPoints),
		AuditRepo:    dynamo.NewAuditRepo(dynamoClient, tables.AuditLogs),
		Images:       s3infra.NewStore(s3Client, cfg.S3BucketName),
		Events:       events,
		JWTProvider:  jwtProvider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, jwtProvider, svcs),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}

	// Scans and events accepted before shutdown still go out.
	drained := make(chan struct{})
	go func() {
		svcs.Engagement.Wait()
		events.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.Warn("background writes still pending at exit")
	}
	slog.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
