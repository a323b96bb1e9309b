package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	lphttp "github.com/radieske/bet-settlement/internal/line-provider/http"
	"github.com/radieske/bet-settlement/internal/line-provider/lifecycle"
	"github.com/radieske/bet-settlement/internal/line-provider/publisher"
	"github.com/radieske/bet-settlement/internal/line-provider/store"
	"github.com/radieske/bet-settlement/internal/shared/config"
	"github.com/radieske/bet-settlement/internal/shared/logger"
	"github.com/radieske/bet-settlement/internal/shared/metrics"
)

func main() {
	cfg := config.Load("line-provider")

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Métricas Prometheus das notificações
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "line_outcomes_published_total", Help: "notificações confirmadas pelo broker"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "line_outcomes_failed_total", Help: "notificações não confirmadas"})
	prometheus.MustRegister(published, failed)

	// Publisher com confirmação; conecta sob demanda se o broker ainda não estiver de pé
	pub := publisher.NewAMQPPublisher(log,
		publisher.DialRabbit(cfg.AMQPURL, cfg.Exchange),
		cfg.Exchange, cfg.RoutingKey, cfg.PublishTimeout)
	pub.OnPublished = published.Inc
	pub.OnError = failed.Inc
	if err := pub.Connect(); err != nil {
		log.Warn("amqp not reachable at startup; will dial on first publish", zap.Error(err))
	}
	defer pub.Close()

	// Tabela de eventos do processo: criada aqui, descartada no shutdown
	events := store.NewMemory()
	manager := lifecycle.NewManager(log, events, pub)
	if cfg.SeedEvents {
		if err := manager.Seed(context.Background(), lifecycle.DemoEvents(time.Now())...); err != nil {
			log.Fatal("seed events", zap.Error(err))
		}
	}

	api := &lphttp.API{Log: log, Manager: manager}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, nil)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("line-provider stopped", zap.Int("events", events.Len()))
}
