package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoscribe/notesync/internal/config"
	"github.com/echoscribe/notesync/internal/notesync"
	"github.com/echoscribe/notesync/internal/push"
	"github.com/echoscribe/notesync/internal/snapshotapi"
)

func main() {
	configPath := flag.String("config", os.Getenv("NOTESYNC_CONFIG"), "path to YAML config file")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = loggerWithLevel(logger, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote := notesync.NewHTTPRemoteClient(notesync.RemoteClientOptions{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
	})
	session, err := notesync.NewSession(notesync.SessionOptions{
		Remote:          remote,
		Logger:          logger,
		GracePeriod:     cfg.GracePeriod.Std(),
		PollInterval:    cfg.PollInterval.Std(),
		PollMaxAttempts: cfg.PollMaxAttempts,
		QueueCapacity:   cfg.EventQueueSize,
		OnDeleteError: func(kind notesync.DeleteKind, id string, err error) {
			logger.Error().Err(err).Str("kind", string(kind)).Str("id", id).Msg("delete failed, item restored")
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize synchronizer session")
	}
	defer session.Close()

	if cfg.PushURL != "" {
		client, err := push.NewClient(session, push.Options{
			URL:    cfg.PushURL,
			Token:  cfg.APIToken,
			UserID: cfg.UserID,
			Logger: logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize push client")
		}
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("push client stopped")
			}
		}()
	} else {
		logger.Warn().Msg("no push url configured, running without live updates")
	}

	if err := config.Watch(ctx, *configPath, logger, func(next config.Config) {
		logger = loggerWithLevel(logger, next.LogLevel)
		session.Deletions().SetGracePeriod(next.GracePeriod.Std())
	}); err != nil {
		logger.Warn().Err(err).Msg("config watch unavailable")
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: snapshotapi.NewServer(session),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.Addr).Msg("notesyncd listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("snapshot server failed")
	}
}

func loggerWithLevel(logger zerolog.Logger, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return logger
	}
	return logger.Level(parsed)
}
