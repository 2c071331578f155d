package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/shared/config"
	"github.com/radieske/fantasy-bet-core/internal/shared/kafka"
	"github.com/radieske/fantasy-bet-core/internal/shared/logger"
	"github.com/radieske/fantasy-bet-core/internal/shared/metrics"
	"github.com/radieske/fantasy-bet-core/pkg/contracts/events"
)

// Ferramenta de desenvolvimento: publica resultados de apostas no feed
// para exercitar o settlement-worker sem um resolvedor real de ligas.
// POST /v1/outcomes com o corpo OutcomeResolved, ou ?random=true para
// sortear o resultado.

var outcomesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "simulator_outcomes_published_total",
	Help: "Resultados publicados no feed",
}, []string{"outcome"})

type server struct {
	log    *zap.Logger
	writer *kafkago.Writer
}

var outcomes = []string{"WIN", "LOSS", "PUSH"}

func (s *server) publishHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req events.OutcomeResolved
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.BetID == "" {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("random") == "true" || req.Outcome == "" {
		req.Outcome = outcomes[rand.Intn(len(outcomes))]
	}
	req.ResolvedAt = time.Now()
	if req.Source == "" {
		req.Source = "simulator"
	}

	b, _ := json.Marshal(req)
	if err := kafka.WriteJSON(r.Context(), s.writer, req.BetID, b); err != nil {
		s.log.Error("publish failed", zap.Error(err))
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}

	outcomesPublished.WithLabelValues(req.Outcome).Inc()
	s.log.Info("outcome published",
		zap.String("betId", req.BetID),
		zap.String("outcome", req.Outcome))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(req)
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "outcome-simulator"), zap.String("env", cfg.Env))

	prometheus.MustRegister(outcomesPublished)

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetOutcomes)
	defer writer.Close()

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	s := &server{log: log, writer: writer}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/outcomes", s.publishHandler)

	httpSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}
	go func() {
		log.Info("simulator listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http srv", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	log.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)
}
