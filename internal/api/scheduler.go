package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"wansteer/internal/health"
	"wansteer/internal/model"
	"wansteer/internal/sched"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SchedulerHandler exposes packet submission and the health snapshot.
type SchedulerHandler struct {
	pipeline   *sched.Pipeline
	aggregator *health.Aggregator
	upgrader   websocket.Upgrader
	pushEvery  time.Duration
}

// NewSchedulerRouter builds the scheduling daemon's router, including the
// Prometheus endpoint.
func NewSchedulerRouter(pipeline *sched.Pipeline, aggregator *health.Aggregator) *mux.Router {
	h := &SchedulerHandler{
		pipeline:   pipeline,
		aggregator: aggregator,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		pushEvery:  2 * time.Second,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/packets", h.submitHandler).Methods("POST")
	r.HandleFunc("/api/v1/links", h.linksHandler).Methods("GET")
	r.HandleFunc("/api/v1/links/ws", h.linksStreamHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// submitHandler admits one packet. Queue pressure maps to 429 and an empty
// candidate set to 503, so producers can tell shedding from outage.
func (h *SchedulerHandler) submitHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}

	var pkt model.Packet
	if err := json.Unmarshal(body, &pkt); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode packet: %v", err), http.StatusBadRequest)
		return
	}

	scheduled, err := h.pipeline.Submit(&pkt)
	switch {
	case errors.Is(err, model.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	case errors.Is(err, model.ErrNoLinkAvailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, scheduled)
}

// linksHandler returns the current health snapshot, staleness included.
func (h *SchedulerHandler) linksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.aggregator.Snapshot())
}

// linksStreamHandler upgrades to a websocket and pushes the snapshot on an
// interval until the client goes away.
func (h *SchedulerHandler) linksStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(h.pushEvery)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(h.aggregator.Snapshot()); err != nil {
			return
		}
		<-ticker.C
	}
}
