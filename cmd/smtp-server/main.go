package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/sungwon/esp-mailer/internal/auth"
	"github.com/sungwon/esp-mailer/internal/bridge"
	"github.com/sungwon/esp-mailer/internal/config"
	"github.com/sungwon/esp-mailer/internal/dispatch"
	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/provider"
	smtpserver "github.com/sungwon/esp-mailer/internal/smtp"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the given password for smtp.password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured JSON logger.
	log := logger.NewFromConfig(cfg.Logging.Logger())
	log.Info().Msg("starting SMTP server")

	ctx := context.Background()
	dispatcher, err := dispatch.New(ctx, cfg.Mailer, provider.DefaultRegistry(nil), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure mail provider")
	}
	if !dispatcher.Supported() {
		log.Warn().Str("provider", dispatcher.Provider()).Msg("no adapter for provider; messages will be deferred")
	}

	if cfg.SMTP.PasswordHash == "" {
		log.Warn().Msg("smtp.password_hash is not set; every AUTH attempt will fail")
	}

	backend := smtpserver.NewBackend(
		bridge.New(dispatcher, log),
		smtpserver.Credentials{Username: cfg.SMTP.Username, PasswordHash: cfg.SMTP.PasswordHash},
		log,
		cfg.SMTP.MaxConnections,
	)

	// Configure SMTP server.
	s := gosmtp.NewServer(backend)
	s.Addr = fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	s.Domain = cfg.SMTP.Domain
	s.ReadTimeout = cfg.SMTP.ReadTimeout
	s.WriteTimeout = cfg.SMTP.WriteTimeout
	s.MaxMessageBytes = cfg.SMTP.MaxMessageSize
	s.AllowInsecureAuth = cfg.SMTP.AllowInsecureAuth

	// Configure TLS if certificates are provided.
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load TLS certificate")
		}
		s.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		s.EnableSMTPUTF8 = true
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", s.Addr).Msg("failed to listen")
	}

	go func() {
		log.Info().Str("addr", s.Addr).Str("provider", dispatcher.Provider()).Msg("SMTP server listening")
		if err := s.Serve(ln); err != nil {
			log.Error().Err(err).Msg("SMTP server error")
		}
	}()

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down SMTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("SMTP server shutdown error")
	}

	log.Info().Msg("SMTP server stopped")
}
