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
	"golang.org/x/sync/errgroup"

	"github.com/radieske/bet-settlement/internal/bet-maker/cache"
	bmhttp "github.com/radieske/bet-settlement/internal/bet-maker/http"
	"github.com/radieske/bet-settlement/internal/bet-maker/producer"
	"github.com/radieske/bet-settlement/internal/bet-maker/pubsub"
	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/internal/bet-maker/settlement"
	"github.com/radieske/bet-settlement/internal/bet-maker/ws"
	sharedcache "github.com/radieske/bet-settlement/internal/shared/cache"
	"github.com/radieske/bet-settlement/internal/shared/config"
	"github.com/radieske/bet-settlement/internal/shared/db"
	"github.com/radieske/bet-settlement/internal/shared/kafka"
	"github.com/radieske/bet-settlement/internal/shared/logger"
	"github.com/radieske/bet-settlement/internal/shared/metrics"
	"github.com/radieske/bet-settlement/internal/shared/rabbitmq"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

func main() {
	cfg := config.Load("bet-maker")

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var checks []metrics.HealthFunc

	// Livro de apostas: Postgres por padrão, memória para rodar sem banco
	var store repo.Store
	switch cfg.LedgerStore {
	case "memory":
		store = repo.NewMemory()
		log.Warn("using in-memory ledger; bets are lost on restart")
	default:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		pgRepo := repo.NewPostgres(pg)
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Fatal("postgres migrate", zap.Error(err))
		}
		store = pgRepo
		checks = append(checks, pg.PingContext)
		log.Info("postgres connected")
	}

	// Métricas Prometheus do consumidor
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_settlement_messages_consumed_total", Help: "notificações recebidas"})
	settledBets := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_settlement_bets_settled_total", Help: "apostas liquidadas"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_settlement_messages_rejected_total", Help: "notificações inválidas descartadas"})
	requeued := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_settlement_messages_requeued_total", Help: "notificações devolvidas à fila"})
	resubs := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_settlement_resubscriptions_total", Help: "reassinaturas da fila"})
	fanoutErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_settlement_fanout_errors_total", Help: "erros de fan-out por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, settledBets, rejected, requeued, resubs, fanoutErrors)

	hub := ws.NewHub(log, func(r *http.Request) bool { return true })
	fanout := &settlement.Fanout{
		Log:         log,
		Broadcaster: hub,
		Timeout:     2 * time.Second,
		OnError:     func(stage string) { fanoutErrors.WithLabelValues(stage).Inc() },
	}

	// Redis é opcional: cache de eventos ativos e broadcast entre instâncias
	var activeCache bmhttp.ActiveEventsCache
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable; running without cache and pub/sub", zap.Error(err))
	} else {
		defer redisClient.Close()
		rc := cache.NewRedisCache(redisClient, cfg.ActiveEventsTTL)
		activeCache = rc
		fanout.Cache = rc
		fanout.Broadcaster = pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel)
		ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)
		checks = append(checks, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		log.Info("redis connected")
	}

	// Kafka é opcional: KAFKA_BROKERS vazio desliga bet_settled e DLQ
	if cfg.KafkaBrokers != "" {
		settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
		dlqW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEventFinishedDLQ)
		defer settledW.Close()
		defer dlqW.Close()
		fanout.Producer = producer.NewKafkaPublisher(settledW, dlqW)
		log.Info("kafka writers ready", zap.String("settled", cfg.TopicBetSettled), zap.String("dlq", cfg.TopicEventFinishedDLQ))
	}

	sub := &rabbitmq.Subscriber{
		URL: cfg.AMQPURL,
		Topology: rabbitmq.Topology{
			Exchange:   cfg.Exchange,
			RoutingKey: cfg.RoutingKey,
			Queue:      cfg.Queue,
		},
		Prefetch:    1,
		ConsumerTag: cfg.ServiceName,
	}
	consumer := &settlement.Consumer{
		Log:              log,
		Subscribe:        sub.Subscribe,
		Handler:          &settlement.Handler{Log: log, Store: store},
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
		RequeueDelay:     cfg.RequeueDelay,
		OnSettled: func(ctx context.Context, o events.Outcome, bets []repo.Bet) {
			settledBets.Add(float64(len(bets)))
			fanout.Announce(ctx, o, bets)
		},
		OnMalformed:   fanout.DeadLetter,
		OnConsumed:    consumed.Inc,
		OnRejected:    rejected.Inc,
		OnRequeued:    requeued.Inc,
		OnResubscribe: resubs.Inc,
	}

	api := bmhttp.NewServer(log, store, activeCache, hub.HandleWS)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("bet-maker stopped with error", zap.Error(err))
		return
	}
	log.Info("bet-maker stopped")
}
