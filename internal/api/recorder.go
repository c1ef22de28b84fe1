package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wansteer/internal/history"

	"github.com/gorilla/mux"
)

// HistoryRequest is the body of a history range query.
type HistoryRequest struct {
	Interface string    `json:"interface"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

// RecorderHandler exposes the metrics history query API.
type RecorderHandler struct {
	querier history.Querier
}

// NewRecorderRouter builds the recorder daemon's router.
func NewRecorderRouter(querier history.Querier) *mux.Router {
	h := &RecorderHandler{querier: querier}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/history", h.historyHandler).Methods("POST")
	return r
}

func (h *RecorderHandler) historyHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}

	var req HistoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Interface == "" {
		http.Error(w, "interface is required", http.StatusBadRequest)
		return
	}
	if req.To.IsZero() {
		req.To = time.Now()
	}

	points, err := h.querier.LinkHistory(r.Context(), req.Interface, req.From, req.To)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query history: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, points)
}
