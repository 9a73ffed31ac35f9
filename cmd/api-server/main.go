package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/api"
	"github.com/sungwon/esp-mailer/internal/archive"
	"github.com/sungwon/esp-mailer/internal/auth"
	"github.com/sungwon/esp-mailer/internal/config"
	"github.com/sungwon/esp-mailer/internal/dispatch"
	"github.com/sungwon/esp-mailer/internal/events"
	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/provider"
	"github.com/sungwon/esp-mailer/internal/storage"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	issueToken := flag.String("issue-token", "", "print a send-API token for the given subject and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.Auth)
	if *issueToken != "" {
		token, err := jwtService.GenerateToken(*issueToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.Logging.Logger())
	log.Info().Msg("starting API server")

	ctx := context.Background()

	// Resolve the active provider. A missing credential stops startup here.
	dispatcher, err := dispatch.New(ctx, cfg.Mailer, provider.DefaultRegistry(nil), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure mail provider")
	}

	// Connect to database
	db, err := storage.NewDB(
		ctx,
		cfg.Database.URL,
		cfg.Database.PoolMin,
		cfg.Database.PoolMax,
		cfg.Database.ConnectTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("database connection established")

	normalizer := webhook.NewNormalizer(cfg.Mailer.Provider, webhook.DefaultParsers(), storage.NewEventStore(db.Pool), log)
	if !normalizer.Supported() {
		log.Warn().Str("provider", normalizer.Provider()).Msg("no webhook format for provider; webhook requests will fail")
	}

	emitter := events.NewEmitter(log)
	closeSinks := registerSubscribers(ctx, emitter, cfg.Notifications, log)
	defer closeSinks()

	webhookArchive, err := archive.New(ctx, cfg.Archive, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure webhook archive")
	}

	var sendJWT *auth.JWTService
	if cfg.Auth.SigningKey != "" {
		sendJWT = jwtService
	} else {
		log.Warn().Msg("auth.signing_key is not set; send API disabled (set MAILER_AUTH_SIGNING_KEY)")
	}

	router := api.NewRouter(api.RouterConfig{
		WebhookPath: cfg.Mailer.WebhookURL,
		Ingester:    normalizer,
		Emitter:     emitter,
		Archive:     webhookArchive,
		Sender:      dispatcher,
		JWT:         sendJWT,
		DB:          db,
	}, log)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Str("webhook_path", cfg.Mailer.WebhookURL).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	// Graceful shutdown with 30-second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// registerSubscribers attaches the configured notification sinks and returns
// a function releasing their connections.
func registerSubscribers(ctx context.Context, emitter *events.Emitter, cfg config.NotificationsConfig, log zerolog.Logger) func() {
	var closers []func()

	if cfg.HasSink("log") {
		emitter.Subscribe(events.NewLogSubscriber(log))
	}

	if cfg.HasSink("redis") {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable at startup")
		}
		emitter.Subscribe(events.NewRedisStreamSubscriber(client, cfg.RedisStream, cfg.RedisMaxLen))
		closers = append(closers, func() { client.Close() })
		log.Info().Str("stream", cfg.RedisStream).Msg("redis notification sink enabled")
	}

	if cfg.HasSink("sqs") {
		sub, err := events.NewSQSSubscriber(ctx, cfg.SQSRegion, cfg.SQSQueueURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure sqs notification sink")
		}
		emitter.Subscribe(sub)
		log.Info().Str("queue_url", cfg.SQSQueueURL).Msg("sqs notification sink enabled")
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}
