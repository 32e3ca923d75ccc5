// Package datahandlers exposes the compact per-ticker data endpoints: batch
// return lookups and batch watchlist-metrics, both reading through the same
// cached price provider the analyze/screen handlers use.
package datahandlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/domain"
	"github.com/catalystengine/screener/internal/providers"
)

// Handler serves /data/return/batch and /data/watchlist-metrics/batch.
type Handler struct {
	prices providers.PriceProvider
	log    zerolog.Logger
}

// New builds the data handler.
func New(prices providers.PriceProvider, log zerolog.Logger) *Handler {
	return &Handler{prices: prices, log: log.With().Str("handler", "data").Logger()}
}

// RegisterRoutes wires this handler's routes onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/data/return/batch", h.returnBatch)
	r.Post("/data/watchlist-metrics/batch", h.watchlistMetricsBatch)
}

type returnResult struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"current_price"`
	DayChangePct float64 `json:"day_change_pct"`
}

func (h *Handler) returnBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err.Error(), 0)
		return
	}

	results := make(map[string]returnResult)
	for _, raw := range body.Tickers {
		ticker, ok := domain.NormalizeTicker(raw)
		if !ok {
			continue
		}
		bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
		if err != nil {
			h.log.Debug().Err(err).Str("ticker", ticker).Msg("skipping ticker in return batch")
			continue
		}
		if len(bars) == 0 {
			continue
		}

		current := bars[len(bars)-1].Close
		var changePct float64
		if len(bars) >= 2 {
			prev := bars[len(bars)-2].Close
			if prev != 0 {
				changePct = (current - prev) / prev * 100
			}
		}

		results[ticker] = returnResult{Ticker: ticker, CurrentPrice: current, DayChangePct: changePct}
	}

	writeJSON(w, results)
}

type watchlistMetricsResult struct {
	Ticker        string  `json:"ticker"`
	CurrentPrice  float64 `json:"current_price"`
	VolLast       float64 `json:"vol_last"`
	Vol50dAvg     float64 `json:"vol_50d_avg"`
	VolVs50dRatio float64 `json:"vol_vs_50d_ratio,omitempty"`
	DayChangePct  float64 `json:"day_change_pct"`
}

func (h *Handler) watchlistMetricsBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err.Error(), 0)
		return
	}

	results := make(map[string]watchlistMetricsResult)
	for _, raw := range body.Tickers {
		ticker, ok := domain.NormalizeTicker(raw)
		if !ok {
			continue
		}
		bars, err := h.prices.PriceHistory(r.Context(), ticker, "1y")
		if err != nil {
			h.log.Debug().Err(err).Str("ticker", ticker).Msg("skipping ticker in watchlist-metrics batch")
			continue
		}
		if len(bars) == 0 {
			continue
		}

		closes, volumes := seriesFromBars(bars)
		current := closes[len(closes)-1]

		res := watchlistMetricsResult{Ticker: ticker, CurrentPrice: current}

		if len(closes) >= 2 {
			prev := closes[len(closes)-2]
			if prev != 0 {
				res.DayChangePct = (current - prev) / prev * 100
			}
		}

		if len(volumes) > 0 {
			volLast := volumes[len(volumes)-1]
			res.VolLast = volLast

			window := volumes
			if len(window) > 50 {
				window = window[len(window)-50:]
			}
			vol50dAvg := mean(window)
			res.Vol50dAvg = vol50dAvg

			if ratio, ok := safeRatio(volLast, vol50dAvg); ok {
				res.VolVs50dRatio = ratio
			}
		}

		results[ticker] = res
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

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// safeRatio mirrors the platform's _safe_ratio: a ratio is only defined
// when both operands are positive.
func safeRatio(n, d float64) (float64, bool) {
	if n <= 0 || d <= 0 {
		return 0, false
	}
	return n / d, true
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
