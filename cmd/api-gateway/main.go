package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/bet-settlement/internal/api-gateway"
	"github.com/radieske/bet-settlement/internal/shared/config"
	"github.com/radieske/bet-settlement/internal/shared/logger"
	"github.com/radieske/bet-settlement/internal/shared/metrics"
)

func main() {
	cfg := config.Load("api-gateway")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// targets
	h, err := gateway.NewHandler(log, cfg.LineProviderURL, cfg.BetMakerURL)
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("line_provider", cfg.LineProviderURL),
		zap.String("bet_maker", cfg.BetMakerURL),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
