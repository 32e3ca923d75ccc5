// Package monitorhandlers exposes market health and the watchlist CRUD
// surface, including the internal refresh-status trigger.
package monitorhandlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/domain"
	"github.com/catalystengine/screener/internal/markethealth"
	"github.com/catalystengine/screener/internal/store"
	"github.com/catalystengine/screener/internal/watchlist"
)

// Handler serves /monitor.
type Handler struct {
	db           *store.DB
	marketHealth func(ctx context.Context) (markethealth.Aggregate, error)
	engine       *watchlist.Engine
	log          zerolog.Logger
}

// New builds the monitor handler. marketHealth evaluates C5 on demand --
// the same evaluator the scheduler's daily market-health beat also calls
// to persist the trend-of-the-day row.
func New(db *store.DB, marketHealth func(ctx context.Context) (markethealth.Aggregate, error), engine *watchlist.Engine, log zerolog.Logger) *Handler {
	return &Handler{db: db, marketHealth: marketHealth, engine: engine, log: log.With().Str("handler", "monitor").Logger()}
}

// RegisterRoutes wires this handler's routes onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/monitor/market-health", h.marketHealthHandler)
	r.Get("/monitor/watchlist", h.listWatchlist)
	r.Put("/monitor/watchlist/{ticker}", h.upsertWatchlist)
	r.Delete("/monitor/archive/{ticker}", h.deleteArchived)
	r.Post("/monitor/internal/watchlist/refresh-status", h.refreshStatus)
}

func (h *Handler) marketHealthHandler(w http.ResponseWriter, r *http.Request) {
	agg, err := h.marketHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load index data", err.Error(), 0)
		return
	}

	writeJSON(w, agg)
}

func (h *Handler) listWatchlist(w http.ResponseWriter, r *http.Request) {
	exclude := make(map[string]bool)
	for _, t := range strings.Split(r.URL.Query().Get("exclude"), ",") {
		if t == "" {
			continue
		}
		decoded, err := url.QueryUnescape(t)
		if err != nil {
			decoded = t
		}
		if norm, ok := domain.NormalizeTicker(decoded); ok {
			exclude[norm] = true
		}
	}

	rows, err := h.db.Query(`SELECT ticker, is_favourite, status, last_refresh_status, enrichments FROM watchlist_items`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load watchlist", err.Error(), 0)
		return
	}
	defer rows.Close()

	type item struct {
		Ticker            string          `json:"ticker"`
		IsFavourite       bool            `json:"is_favourite"`
		Status            string          `json:"status"`
		LastRefreshStatus string          `json:"last_refresh_status"`
		Enrichments       json.RawMessage `json:"enrichments"`
	}

	var out []item
	for rows.Next() {
		var it item
		var fav int
		var enrichments string
		if err := rows.Scan(&it.Ticker, &fav, &it.Status, &it.LastRefreshStatus, &enrichments); err != nil {
			continue
		}
		if exclude[it.Ticker] {
			continue
		}
		it.IsFavourite = fav != 0
		it.Enrichments = json.RawMessage(enrichments)
		out = append(out, it)
	}

	writeJSON(w, out)
}

func (h *Handler) upsertWatchlist(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ticker")
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	ticker, ok := domain.NormalizeTicker(decoded)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed ticker", "", 0)
		return
	}

	var body struct {
		UserID      string `json:"user_id"`
		IsFavourite bool   `json:"is_favourite"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.UserID == "" {
		body.UserID = "default"
	}

	var existing int
	_ = h.db.QueryRow(`SELECT COUNT(*) FROM watchlist_items WHERE user_id = ? AND ticker = ?`, body.UserID, ticker).Scan(&existing)

	_, err = h.db.Exec(`
		INSERT INTO watchlist_items (user_id, ticker, is_favourite, status, last_refresh_status)
		VALUES (?, ?, ?, 'Pending', 'PENDING')
		ON CONFLICT(user_id, ticker) DO UPDATE SET is_favourite = excluded.is_favourite
	`, body.UserID, ticker, boolToInt(body.IsFavourite))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to upsert watchlist item", err.Error(), 0)
		return
	}

	status := http.StatusCreated
	if existing > 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (h *Handler) deleteArchived(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ticker")
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	ticker, ok := domain.NormalizeTicker(decoded)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed ticker", "", 0)
		return
	}

	_, err = h.db.Exec(`DELETE FROM archived_watchlist_items WHERE ticker = ?`, ticker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete archived item", err.Error(), 0)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) refreshStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.UserID == "" {
		body.UserID = "default"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	summary, err := h.engine.RefreshWatchlist(ctx, body.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh failed", err.Error(), 0)
		return
	}

	writeJSON(w, summary)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
