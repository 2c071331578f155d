package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/api"
	"github.com/radieske/fantasy-bet-core/internal/api/ws"
	"github.com/radieske/fantasy-bet-core/internal/bets"
	"github.com/radieske/fantasy-bet-core/internal/catalog"
	"github.com/radieske/fantasy-bet-core/internal/external"
	"github.com/radieske/fantasy-bet-core/internal/pricing"
	sharedcache "github.com/radieske/fantasy-bet-core/internal/shared/cache"
	"github.com/radieske/fantasy-bet-core/internal/shared/config"
	"github.com/radieske/fantasy-bet-core/internal/shared/db"
	"github.com/radieske/fantasy-bet-core/internal/shared/logger"
	"github.com/radieske/fantasy-bet-core/internal/shared/metrics"
	"github.com/radieske/fantasy-bet-core/internal/staking"
	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "betting-service"), zap.String("env", cfg.Env))

	// Postgres: carteiras, ledger e apostas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache de boards e Pub/Sub para o hub WS
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Métricas Prometheus do ciclo de vida
	placed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas colocadas"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_cancelled_total", Help: "apostas canceladas"})
	prometheus.MustRegister(placed, cancelled)

	// Dependências do core
	ledger := wallet.NewPostgres(pg)
	store := bets.NewPostgres(pg, ledger)

	eng := pricing.New(cfg.HouseMargin, cfg.LogisticScale)
	advisor := staking.NewAdvisor(cfg.KellyCap)

	schedule := external.NewScheduleClient(cfg.ScheduleURL)
	projections := external.NewProjectionClient(cfg.ProjectionsURL)

	cat := catalog.New(log, schedule, projections, eng, store).
		WithCache(catalog.NewBoardCache(redisClient)).
		WithBroadcaster(catalog.NewRedisBroadcaster(redisClient, log, cfg.RedisPubSubChannel))

	manager := bets.NewManager(log, store, cat, eng, schedule, bets.Config{
		MinStakeCents: cfg.MinStakeCents,
		MaxStakeCents: cfg.MaxStakeCents,
	})
	manager.OnPlaced = func() { placed.Inc() }
	manager.OnCancelled = func() { cancelled.Inc() }

	// Hub WS alimentado pelo Pub/Sub do catálogo
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, redisClient, hub, cfg.RedisPubSubChannel, log)

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		if err := pg.PingContext(hctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := redisClient.Ping(hctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// Servidor HTTP público (API REST + WS)
	srv := api.NewServer(log, manager, cat, ledger, eng, advisor).WithHub(hub)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: srv.Router(),
	}

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	// Shutdown gracioso (SIGINT/SIGTERM)
	<-ctx.Done()
	log.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = apiSrv.Shutdown(shutCtx)
}
