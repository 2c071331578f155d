package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/bets"
	"github.com/radieske/fantasy-bet-core/internal/settlement"
	"github.com/radieske/fantasy-bet-core/internal/shared/config"
	"github.com/radieske/fantasy-bet-core/internal/shared/db"
	"github.com/radieske/fantasy-bet-core/internal/shared/kafka"
	"github.com/radieske/fantasy-bet-core/internal/shared/logger"
	"github.com/radieske/fantasy-bet-core/internal/shared/metrics"
	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "settlement-worker"), zap.String("env", cfg.Env))

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Métricas do pipeline de liquidação
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "outcomes_consumed_total", Help: "mensagens consumidas do feed de resultados"})
	settledByOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_settled_total", Help: "apostas liquidadas"}, []string{"outcome"})
	errorsByStage := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "falhas por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, settledByOutcome, errorsByStage)

	ledger := wallet.NewPostgres(pg)
	store := bets.NewPostgres(pg, ledger)

	// O worker só liquida: não precisa de quoter nem agenda
	manager := bets.NewManager(log, store, nil, nil, nil, bets.Config{})
	manager.OnSettled = func(outcome bets.Outcome, applied bool) {
		if applied {
			settledByOutcome.WithLabelValues(string(outcome)).Inc()
		}
	}

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetOutcomes, "settlement-worker")
	defer reader.Close()

	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetOutcomesDLQ)
	defer dlqWriter.Close()

	metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		if err := pg.PingContext(hctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	consumer := &settlement.Consumer{
		Log:     log,
		Reader:  reader,
		Manager: manager,
		Settled: settledWriter,
		DLQ:     dlqWriter,

		OnConsumed: func() { consumed.Inc() },
		OnError:    func(stage string) { errorsByStage.WithLabelValues(stage).Inc() },
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("consuming outcomes", zap.String("topic", cfg.TopicBetOutcomes))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consumer stopped", zap.Error(err))
	}
	log.Info("shutting down")
}
