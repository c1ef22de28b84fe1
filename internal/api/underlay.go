// Package api holds the HTTP surfaces of the daemons, built on gorilla/mux.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wansteer/internal/probe"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnderlayHandler exposes the probe daemon's metrics query interface. Both
// endpoints are safe to call concurrently with the running probe loops.
type UnderlayHandler struct {
	engine *probe.Engine
}

// NewUnderlayRouter builds the underlay daemon's router.
func NewUnderlayRouter(engine *probe.Engine) *mux.Router {
	h := &UnderlayHandler{engine: engine}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/metrics", h.getMetricsHandler).Methods("GET")
	r.HandleFunc("/api/v1/probe/{interface}", h.probeHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// getMetricsHandler returns the last-known sample for every interface.
func (h *UnderlayHandler) getMetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Latest())
}

// probeHandler runs an on-demand probe of one interface, bypassing its cycle.
func (h *UnderlayHandler) probeHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["interface"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	metrics, err := h.engine.ProbeNow(ctx, name)
	if err != nil {
		http.Error(w, fmt.Sprintf("probe failed: %v", err), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure here only truncates
	// the body.
	_ = json.NewEncoder(w).Encode(payload)
}
