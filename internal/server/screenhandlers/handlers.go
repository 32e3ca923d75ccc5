// Package screenhandlers exposes the trend screener over HTTP.
package screenhandlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/domain"
	"github.com/catalystengine/screener/internal/providers"
	"github.com/catalystengine/screener/internal/trend"
)

// Handler serves /screen.
type Handler struct {
	prices providers.PriceProvider
	log    zerolog.Logger
}

// New builds the screen handler.
func New(prices providers.PriceProvider, log zerolog.Logger) *Handler {
	return &Handler{prices: prices, log: log.With().Str("handler", "screen").Logger()}
}

// RegisterRoutes wires this handler's routes onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/screen/{ticker}", h.screenOne)
	r.Post("/screen/batch", h.screenBatch)
}

type screenResponse struct {
	Ticker string       `json:"ticker"`
	Pass   bool         `json:"pass"`
	Rules  trend.Result `json:"rules"`
}

func (h *Handler) screenOne(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ticker")
	ticker, ok := domain.NormalizeTicker(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed ticker", "", 0)
		return
	}

	bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
	if err != nil {
		writeError(w, http.StatusNotFound, "no data for ticker", "", 0)
		return
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	result := trend.Screen(closes)

	writeJSON(w, screenResponse{Ticker: ticker, Pass: result.Pass, Rules: result})
}

func (h *Handler) screenBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err.Error(), 0)
		return
	}

	results := make(map[string]screenResponse)
	for _, raw := range body.Tickers {
		ticker, ok := domain.NormalizeTicker(raw)
		if !ok {
			continue
		}
		bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
		if err != nil {
			h.log.Debug().Err(err).Str("ticker", ticker).Msg("skipping ticker in batch screen")
			continue
		}
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		result := trend.Screen(closes)
		results[ticker] = screenResponse{Ticker: ticker, Pass: result.Pass, Rules: result}
	}

	writeJSON(w, results)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errMsg, details string, dependencyStatusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"error": errMsg}
	if details != "" {
		body["details"] = details
	}
	if dependencyStatusCode != 0 {
		body["dependency_status_code"] = dependencyStatusCode
	}
	_ = json.NewEncoder(w).Encode(body)
}
