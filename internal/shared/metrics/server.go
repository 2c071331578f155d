package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc verifica as dependências do serviço (Postgres, Redis).
// Erro = unhealthy; o timeout é curto para o probe não segurar conexão.
type HealthFunc func(ctx context.Context) error

// NewHandler monta o mux de observabilidade: /metrics (Prometheus) e
// /healthz com o resultado das checagens em JSON
func NewHandler(healthFn HealthFunc) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return mux
}

// StartMetricsServer sobe o servidor de observabilidade numa goroutine.
// Cada serviço usa uma porta dedicada, separada da API pública.
func StartMetricsServer(port string, healthFn HealthFunc) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: NewHandler(healthFn),
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
