// Package main запускает HTTP-сервер кассового терминала.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/kassa-terminal/internal/auth"
	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/cache"
	"github.com/mmeshcher/kassa-terminal/internal/config"
	"github.com/mmeshcher/kassa-terminal/internal/handler"
	"github.com/mmeshcher/kassa-terminal/internal/metrics"
	"github.com/mmeshcher/kassa-terminal/internal/middleware"
	"github.com/mmeshcher/kassa-terminal/internal/rate"
	"github.com/mmeshcher/kassa-terminal/internal/repository"
	"github.com/mmeshcher/kassa-terminal/internal/service"
)

const credentialsTTL = 24 * time.Hour

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	journal, err := openJournal(cfg)
	if err != nil {
		sugar.Fatalw("sales journal initialization error", "error", err.Error())
	}

	store := openTokenStore(cfg, sugar)
	if redisStore, ok := store.(*cache.RedisTokenStore); ok {
		defer redisStore.Close()
	}

	board, err := rate.NewBoard(cfg.ExchangeRate)
	if err != nil {
		sugar.Fatalw("invalid exchange rate", "rate", cfg.ExchangeRate, "error", err.Error())
	}

	reg := metrics.NewRegistry()

	api := backend.NewClient(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithObserver(reg),
	)
	manager := auth.NewManager(api, store, logger)
	api.SetTokenSource(manager)

	svc := service.NewService(api, manager, board, journal,
		service.WithLogger(logger),
		service.WithMetrics(reg),
		service.WithFilial(cfg.FilialID),
	)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cashier, ok, err := svc.Restore(ctx); err != nil {
		sugar.Warnw("failed to restore cashier session", "error", err.Error())
	} else if ok {
		sugar.Infow("cashier session restored", "cashier", cashier.Username)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.CookieSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, reg)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting kassa terminal", "addr", cfg.RunAddress, "backend", cfg.BackendURL, "rate", board.Current())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openJournal открывает журнал продаж: PostgreSQL, если задан DATABASE_URI, иначе память.
func openJournal(cfg *config.Config) (service.Journal, error) {
	if cfg.DatabaseURI == "" {
		return repository.NewMemoryRepository(), nil
	}
	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// openTokenStore выбирает хранилище авторизации. Недоступный Redis заменяется памятью.
func openTokenStore(cfg *config.Config, sugar *zap.SugaredLogger) cache.TokenStore {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryTokenStore()
	}

	store := cache.NewRedisTokenStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cache.DefaultKey, credentialsTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		sugar.Warnw("redis unavailable, credentials will not survive restart", "addr", cfg.RedisAddr, "error", err.Error())
		_ = store.Close()
		return cache.NewMemoryTokenStore()
	}
	return store
}
