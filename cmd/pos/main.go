package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/config"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	h "github.com/fjod/go_pos/internal/http"
	"github.com/fjod/go_pos/internal/observability"
	"github.com/fjod/go_pos/internal/reader"
	"github.com/fjod/go_pos/internal/settings"
	"github.com/fjod/go_pos/internal/terminal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pos: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	client := backend.NewClient(backend.Config{
		BaseURL:            cfg.Backend.BaseURL,
		Timeout:            cfg.Backend.RequestTimeout,
		BreakerMaxFailures: cfg.Backend.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.Backend.BreakerOpenTimeout,
	}, logger)

	store, closeStore, err := newSettingsStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	term := terminal.New(terminal.Config{
		PosID:           cfg.Terminal.PosID,
		SessionTTL:      cfg.Terminal.SessionTTL,
		ConfirmationTTL: cfg.Terminal.ConfirmationTTL,
		HistoryLimit:    cfg.Terminal.HistoryLimit,
	}, client, store, logger)

	unsubscribe := term.Subscribe(func(e events.Event) {
		logger.Debug("terminal event", zap.String("event", e.Name()))
	})
	defer unsubscribe()

	termDone := make(chan struct{})
	go func() {
		defer close(termDone)
		term.Run(ctx)
	}()

	if cfg.Reader == config.ReaderStdin {
		go readTags(ctx, term)
	}

	gate := h.PINGate{Cashier: cfg.Security.CashierPIN, Admin: cfg.Security.AdminPIN}
	router := h.NewRouter(
		h.NewTerminalHandler(term, gate, cfg.Server.RequestTimeout, cfg.Server.CheckoutTimeout, logger),
		h.NewAdminHandler(term.Reports(), cfg.Server.RequestTimeout, logger),
		gate,
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.CheckoutTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("control surface starting",
			zap.String("port", cfg.Server.Port),
			zap.String("pos_id", cfg.Terminal.PosID),
			zap.String("backend", cfg.Backend.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stop()
		<-termDone
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	<-termDone
	logger.Info("terminal exited")
	return nil
}

// newSettingsStore uses Redis when an address is configured and memory otherwise.
func newSettingsStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (settings.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return settings.NewMemoryStore(cfg.Terminal.WineEnabled), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("redis ping succeeded", zap.String("addr", cfg.Redis.Addr))

	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("closing redis", zap.Error(err))
		}
	}
	return settings.NewRedisStore(redisClient, cfg.Terminal.PosID, cfg.Terminal.WineEnabled), closeFn, nil
}

// readTags feeds a keyboard-wedge reader that types one UID per line into the terminal.
func readTags(ctx context.Context, term *terminal.Terminal) {
	logger := observability.FromContext(ctx).With(zap.String("component", "reader"))
	logger.Info("reading tags from stdin")

	err := reader.Lines(ctx, os.Stdin, func(id domain.Identity) {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := term.Scan(callCtx, id); err != nil {
			logger.Warn("scan rejected", zap.String("uid", id.String()), zap.Error(err))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("tag reader stopped", zap.Error(err))
	}
}
