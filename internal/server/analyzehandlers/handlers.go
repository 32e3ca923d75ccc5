// Package analyzehandlers exposes the VCP engine over HTTP: single-ticker
// and batch analyze, plus freshness signals.
package analyzehandlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/domain"
	"github.com/catalystengine/screener/internal/providers"
	"github.com/catalystengine/screener/internal/vcp"
)

// Handler serves /analyze and /analyze/freshness.
type Handler struct {
	prices providers.PriceProvider
	log    zerolog.Logger
}

// New builds the analyze handler.
func New(prices providers.PriceProvider, log zerolog.Logger) *Handler {
	return &Handler{prices: prices, log: log.With().Str("handler", "analyze").Logger()}
}

// RegisterRoutes wires this handler's routes onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analyze/{ticker}", h.analyzeOne)
	r.Post("/analyze/batch", h.analyzeBatch)
	r.Post("/analyze/freshness/batch", h.freshnessBatch)
}

type analyzeResponse struct {
	Ticker    string  `json:"ticker"`
	VCPPass   bool    `json:"vcp_pass"`
	Footprint string  `json:"vcp_footprint"`
	Pivot     float64 `json:"pivot_price"`
	StopLoss  float64 `json:"stop_loss"`
	ChartData *chart  `json:"chart_data,omitempty"`
}

type chart struct {
	BuyPoints  []point `json:"buyPoints"`
	SellPoints []point `json:"sellPoints"`
}

type point struct {
	Value float64 `json:"value"`
}

func (h *Handler) analyzeOne(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ticker")
	ticker, ok := domain.NormalizeTicker(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed ticker", "", 0)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "full"
	}

	bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no data for ticker", "", 0)
			return
		}
		writeError(w, http.StatusBadGateway, "upstream price lookup failed", err.Error(), 0)
		return
	}

	closes, volumes := seriesFromBars(bars)
	result := vcp.RunVCPScreening(closes, volumes)

	resp := analyzeResponse{
		Ticker: ticker, VCPPass: result.Pass, Footprint: result.Footprint,
		Pivot: result.Pivot, StopLoss: result.StopLoss,
	}
	if mode == "full" && len(result.Pattern) > 0 {
		resp.ChartData = &chart{
			BuyPoints:  []point{{Value: result.Pivot}},
			SellPoints: []point{{Value: result.StopLoss}},
		}
	}

	writeJSON(w, resp)
}

func (h *Handler) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tickers []string `json:"tickers"`
		Mode    string   `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err.Error(), 0)
		return
	}

	results := make(map[string]analyzeResponse)
	for _, raw := range body.Tickers {
		ticker, ok := domain.NormalizeTicker(raw)
		if !ok {
			continue
		}
		bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
		if err != nil {
			h.log.Debug().Err(err).Str("ticker", ticker).Msg("skipping ticker in batch analyze")
			continue
		}
		closes, volumes := seriesFromBars(bars)
		result := vcp.RunVCPScreening(closes, volumes)
		results[ticker] = analyzeResponse{
			Ticker: ticker, VCPPass: result.Pass, Footprint: result.Footprint,
			Pivot: result.Pivot, StopLoss: result.StopLoss,
		}
	}

	writeJSON(w, results)
}

type freshnessResult struct {
	Ticker         string `json:"ticker"`
	PatternAgeDays int    `json:"pattern_age_days"`
	DaysSincePivot int    `json:"days_since_pivot"`
}

func (h *Handler) freshnessBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err.Error(), 0)
		return
	}

	results := make(map[string]freshnessResult)
	for _, raw := range body.Tickers {
		ticker, ok := domain.NormalizeTicker(raw)
		if !ok {
			continue
		}
		bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
		if err != nil {
			continue
		}
		closes, volumes := seriesFromBars(bars)
		pattern := vcp.FindPattern(closes)
		if len(pattern) == 0 {
			continue
		}
		last := pattern[len(pattern)-1]
		age := len(closes) - 1 - last.LowIdx
		results[ticker] = freshnessResult{Ticker: ticker, PatternAgeDays: age, DaysSincePivot: age}
		_ = volumes
	}

	writeJSON(w, results)
}

func seriesFromBars(bars []domain.PriceBar) (closes, volumes []float64) {
	closes = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	return closes, volumes
}

func isNotFound(err error) bool {
	return errors.Is(err, providers.ErrNotFound)
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
