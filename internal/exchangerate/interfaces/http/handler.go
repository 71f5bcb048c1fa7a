package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	exchangerate "splitledger/internal/exchangerate/domain"
)

// RateService is the read side of the cached rate source.
type RateService interface {
	Current(ctx context.Context) (exchangerate.Rate, error)
	History(ctx context.Context, limit int) ([]exchangerate.LogEntry, error)
}

// Handler serves exchange rate endpoints.
type Handler struct {
	service RateService
}

// NewHandler constructs a Handler.
func NewHandler(service RateService) (*Handler, error) {
	if service == nil {
		return nil, errors.New("exchange rate handler: nil service")
	}
	return &Handler{service: service}, nil
}

type rateResponse struct {
	Rate      string `json:"rate"`
	Source    string `json:"source"`
	FetchedAt string `json:"fetched_at"`
	Cached    bool   `json:"cached"`
}

type historyItem struct {
	ID           string `json:"id"`
	RateUSDToARS string `json:"rate_usd_to_ars"`
	Source       string `json:"source"`
	FetchedAt    string `json:"fetched_at"`
}

// ServeHTTP routes /api/v1/exchange-rate/{current,history}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/exchange-rate/"), "/") {
	case "current":
		h.handleCurrent(w, r)
	case "history":
		h.handleHistory(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.Current(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rateResponse{
		Rate:      rate.Value.StringFixed(2),
		Source:    rate.Source,
		FetchedAt: rate.FetchedAt.UTC().Format(time.RFC3339),
		Cached:    rate.Cached,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			http.Error(w, "limit must be 1..1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	entries, err := h.service.History(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items := make([]historyItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyItem{
			ID:           entry.ID,
			RateUSDToARS: entry.RateUSDToARS.StringFixed(2),
			Source:       entry.Source,
			FetchedAt:    entry.FetchedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}
