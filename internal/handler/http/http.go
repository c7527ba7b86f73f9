package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jgivc/mfdl/internal/entity"
)

type RunService interface {
	Status() entity.RunStatus
	Abort()
}

func NewMetricsHandler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func NewStatusHandler(srv RunService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(srv.Status()); err != nil {
			log.Error("Cannot encode status", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func NewAbortHandler(srv RunService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "AbortHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if srv.Status().Aborted {
			http.Error(w, "Run is already aborting", http.StatusConflict)

			return
		}

		log.Warn("Abort requested", slog.String("remote", r.RemoteAddr))
		srv.Abort()

		w.Write([]byte("aborting"))
	}
}

// NewMux registers every handler under its route.
func NewMux(reg prometheus.Gatherer, srv RunService, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", NewMetricsHandler(reg))
	mux.Handle("GET /status/{$}", NewStatusHandler(srv, log))
	mux.Handle("POST /abort/{$}", NewAbortHandler(srv, log))

	return mux
}
