// Package main запускает HTTP-сервер коммерческого сервиса.
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

	"github.com/mmeshcher/commerce-system/internal/config"
	"github.com/mmeshcher/commerce-system/internal/events"
	"github.com/mmeshcher/commerce-system/internal/handler"
	"github.com/mmeshcher/commerce-system/internal/member"
	"github.com/mmeshcher/commerce-system/internal/payment"
	"github.com/mmeshcher/commerce-system/internal/processor"
	"github.com/mmeshcher/commerce-system/internal/product"
	"github.com/mmeshcher/commerce-system/internal/repository"
	"github.com/mmeshcher/commerce-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	// Участники и товары обслуживаются локально поверх леджера, если адреса
	// удалённых сервисов не заданы.
	var members member.Service
	if cfg.MemberServiceAddress != "" {
		members = member.NewClient(cfg.MemberServiceAddress)
	} else {
		members = member.NewLocal(repo, repo.MemberLedger(), cfg.LedgerRetryAttempts)
	}

	var products product.Service
	if cfg.ProductServiceAddress != "" {
		products = product.NewClient(cfg.ProductServiceAddress)
	} else {
		products = product.NewLocal(repo, repo.ProductLedger(), cfg.LedgerRetryAttempts)
	}

	var publisher events.Publisher
	if cfg.EventRedisAddress != "" {
		redisPublisher := events.NewRedisPublisher(cfg.EventRedisAddress, "commerce.events", logger)
		defer redisPublisher.Close()
		publisher = redisPublisher
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	registry, err := processor.NewRegistry(
		processor.NewPG(cfg.PGSuccessRate, cfg.PGLatency),
		processor.NewCashpoint(members),
		processor.NewCoupon(0),
		processor.NewBNPL(cfg.BNPLSuccessRate, cfg.BNPLLatency),
	)
	if err != nil {
		sugar.Fatalw("processor registry error", "error", err.Error())
	}

	orchestrator := payment.NewOrchestrator(repo, registry, publisher, logger, cfg.CollaboratorTimeout)
	orders := service.NewOrderService(repo, members, products, orchestrator, publisher, logger, cfg.CollaboratorTimeout)

	h := handler.NewHandler(orders, orchestrator, members, products, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting commerce server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
