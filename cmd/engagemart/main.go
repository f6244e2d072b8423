// Package main запускает HTTP-сервер маркетплейса вовлечённости.
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

	"github.com/mmeshcher/engagemart/internal/ai"
	"github.com/mmeshcher/engagemart/internal/config"
	"github.com/mmeshcher/engagemart/internal/handler"
	"github.com/mmeshcher/engagemart/internal/middleware"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/scheduler"
	"github.com/mmeshcher/engagemart/internal/service"
	"github.com/mmeshcher/engagemart/internal/session"
	"github.com/mmeshcher/engagemart/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := openStore(cfg)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	var aiClient service.AI
	if cfg.AIServiceAddress != "" {
		aiClient = ai.NewClient(cfg.AIServiceAddress)
	}

	var files service.Presigner
	s3cfg := storage.Config{
		Endpoint:        cfg.S3.Endpoint,
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}
	if s3cfg.Enabled() {
		f, err := storage.New(context.Background(), s3cfg)
		if err != nil {
			sugar.Fatalw("object storage initialization error", "error", err.Error())
		}
		files = f
	}

	opts := service.DefaultOptions()
	opts.VerificationFee = cfg.VerificationFee
	opts.CreditSellers = cfg.CreditSellers
	svc := service.NewService(store, aiClient, files, logger, opts)
	defer func() {
		if err := svc.Close(); err != nil {
			sugar.Errorw("close storage", "error", err)
		}
	}()

	if cfg.AdminLogin != "" {
		if err := svc.EnsureAdmin(context.Background(), cfg.AdminLogin, cfg.AdminPassword); err != nil {
			sugar.Fatalw("admin bootstrap error", "error", err.Error())
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, session.NewResolver(cfg.SessionSecret, svc), logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	sched, err := scheduler.Start(ctx, cfg.ReconcileInterval, svc, logger)
	if err != nil {
		sugar.Fatalw("scheduler initialization error", "error", err.Error())
	}

	g.Go(func() error {
		sugar.Infow("starting engagemart server", "addr", cfg.RunAddress, "persistent", cfg.DatabaseURI != "")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		if err := sched.Shutdown(); err != nil {
			sugar.Errorw("scheduler shutdown error", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}

// openStore выбирает PostgreSQL, если задан DSN, иначе хранилище в памяти.
func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.DatabaseURI != "" {
		return repository.NewPostgresRepository(cfg.DatabaseURI)
	}
	if cfg.SnapshotPath != "" {
		return repository.OpenMemoryStore(cfg.SnapshotPath)
	}
	return repository.NewMemoryStore(), nil
}
