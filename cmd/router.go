package main

import (
	"encoding/json"
	"net/http"

	"github.com/bahramrousta/circuit-breaker/internal/circuitbreaker"
	"github.com/bahramrousta/circuit-breaker/internal/metrics"
)

func setupRouter(registry *circuitbreaker.Registry, metricsCollector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/metrics", metricsCollector.Handler())
	mux.HandleFunc("/breakers", breakersHandler(registry))

	return mux
}

func breakersHandler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(registry.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
