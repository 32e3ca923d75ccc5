package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/store"
	"github.com/catalystengine/screener/internal/trend"
	"github.com/catalystengine/screener/internal/vcp"
)

// PriceSeries is the chronological close/volume data a funnel stage needs.
type PriceSeries struct {
	Closes  []float64
	Volumes []float64
}

// PriceLookup fetches the series for a single ticker; failures propagate
// as a funnel-stage error, tracked per-ticker rather than aborting the run.
type PriceLookup func(ctx context.Context, ticker string) (PriceSeries, error)

// Engine drives the funnel over a user's curated watchlist and persists
// the resulting status/archive transitions.
type Engine struct {
	db     *store.DB
	prices PriceLookup
	log    zerolog.Logger
}

// NewEngine builds a C7 refresh engine over the standard-profile database.
func NewEngine(db *store.DB, prices PriceLookup, log zerolog.Logger) *Engine {
	return &Engine{db: db, prices: prices, log: log.With().Str("component", "watchlist").Logger()}
}

// Summary is the response shape for the refresh-status endpoint.
type Summary struct {
	Message        string `json:"message"`
	UpdatedItems   int    `json:"updated_items"`
	ArchivedItems  int    `json:"archived_items"`
	FailedItems    int    `json:"failed_items"`
}

// RefreshWatchlist runs the screen -> vcp -> freshness -> data-metrics
// funnel over every ticker owned by userID, deriving a status label per
// item and persisting the update/archive partition. Data-metrics runs for
// every ticker regardless of survivorship, so UI fields stay populated.
func (e *Engine) RefreshWatchlist(ctx context.Context, userID string) (Summary, error) {
	tickers, favourites, err := e.loadWatchlistTickers(userID)
	if err != nil {
		return Summary{}, fmt.Errorf("loading watchlist for %s: %w", userID, err)
	}

	failedDownstream := make(map[string]bool)
	items := make([]Item, 0, len(tickers))

	for _, ticker := range tickers {
		item := e.runFunnel(ctx, ticker, favourites[ticker], failedDownstream)
		items = append(items, item)
	}

	partition := DeriveRefreshLists(items)

	updated, err := e.persistUpdates(userID, partition.ToUpdate)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to persist watchlist updates")
	}
	archived, err := e.persistArchive(userID, partition.ToArchive)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to persist watchlist archive")
	}

	return Summary{
		Message:       "watchlist refresh complete",
		UpdatedItems:  updated,
		ArchivedItems: archived,
		FailedItems:   len(failedDownstream),
	}, nil
}

// runFunnel applies screen -> vcp -> freshness in order, short-circuiting
// on the first stage failure and stamping FailedStage with the stage
// name, then always runs data-metrics so enrichment fields stay
// populated for the UI even on failure. A downstream series-lookup error
// leaves the ticker UNKNOWN with no FailedStage, matching the platform's
// own failed-downstream-ticker handling. Freshness never fails the
// ticker on pattern age alone -- pattern age is always computable once
// VCP has produced a pattern, so failed_stage="freshness" is reserved
// for a freshness-specific downstream call this pipeline does not make.
func (e *Engine) runFunnel(ctx context.Context, ticker string, isFavourite bool, failedDownstream map[string]bool) Item {
	item := Item{Ticker: ticker, IsFavourite: isFavourite, LastRefreshStatus: Unknown}

	series, err := e.prices(ctx, ticker)
	if err != nil {
		failedDownstream[ticker] = true
		item.LastRefreshStatus = Unknown
		return item
	}

	attachDataMetrics(&item, series)

	screenResult := trend.Screen(series.Closes)
	if !screenResult.Pass {
		item.LastRefreshStatus = Fail
		item.FailedStage = stagePtr("screen")
		return item
	}

	vcpResult := vcp.RunVCPScreening(series.Closes, series.Volumes)
	vcpPass := vcpResult.Pass
	item.VCPPass = &vcpPass
	isPivotGood := vcpResult.PivotGood
	item.IsPivotGood = &isPivotGood
	hasPullback := vcpResult.HasPullbackSetup
	item.HasPullbackSetup = &hasPullback

	if !vcpResult.Pass {
		item.LastRefreshStatus = Fail
		item.FailedStage = stagePtr("vcp")
		return item
	}

	patternAge := patternAgeDays(vcpResult, len(series.Closes))
	item.PatternAgeDays = &patternAge
	item.DaysSincePivot = &patternAge

	hasPivot := len(vcpResult.Pattern) > 0
	item.HasPivot = &hasPivot

	currentPrice := series.Closes[len(series.Closes)-1]
	proximity := proximityPercent(vcpResult.Pivot, currentPrice)
	item.PivotProximityPercent = &proximity
	item.PivotPrice = &vcpResult.Pivot
	isAtPivot := inBand(proximity, -1, 1)
	item.IsAtPivot = &isAtPivot
	footprint := vcpResult.Footprint
	item.VCPFootprint = &footprint

	item.LastRefreshStatus = Pass

	return item
}

// attachDataMetrics computes the data-metrics stage's fields
// (current_price/vol_last/vol_50d_avg/day_change_pct/vol_vs_50d_ratio)
// directly from the same series every other stage reads, and runs
// regardless of screen/vcp survivorship so the UI's enrichment fields
// stay populated for every ticker.
func attachDataMetrics(item *Item, series PriceSeries) {
	if len(series.Closes) == 0 {
		return
	}

	currentPrice := series.Closes[len(series.Closes)-1]
	item.CurrentPrice = &currentPrice

	if len(series.Closes) >= 2 {
		prev := series.Closes[len(series.Closes)-2]
		if prev != 0 {
			change := (currentPrice - prev) / prev * 100
			item.DayChangePct = &change
		}
	}

	if len(series.Volumes) == 0 {
		return
	}

	volLast := series.Volumes[len(series.Volumes)-1]
	item.VolLast = &volLast

	window := series.Volumes
	if len(window) > 50 {
		window = window[len(window)-50:]
	}
	vol50dAvg := mean(window)
	item.Vol50dAvg = &vol50dAvg

	if ratio, ok := safeRatio(volLast, vol50dAvg); ok {
		item.VolVs50dRatio = &ratio
	}
}

func patternAgeDays(r vcp.ScreeningResult, seriesLen int) int {
	if len(r.Pattern) == 0 {
		return 0
	}
	last := r.Pattern[len(r.Pattern)-1]
	return seriesLen - 1 - last.LowIdx
}

func proximityPercent(pivot, currentPrice float64) float64 {
	if pivot == 0 {
		return 0
	}
	return (currentPrice - pivot) / pivot * 100
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
// when both operands are positive, matching the original's null-on-zero-
// or-negative-denominator semantics.
func safeRatio(n, d float64) (float64, bool) {
	if n <= 0 || d <= 0 {
		return 0, false
	}
	return n / d, true
}

func stagePtr(stage string) *string {
	return &stage
}

func (e *Engine) loadWatchlistTickers(userID string) ([]string, map[string]bool, error) {
	rows, err := e.db.Query(`SELECT ticker, is_favourite FROM watchlist_items WHERE user_id = ?`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var tickers []string
	favourites := make(map[string]bool)
	for rows.Next() {
		var ticker string
		var fav int
		if err := rows.Scan(&ticker, &fav); err != nil {
			return nil, nil, err
		}
		tickers = append(tickers, ticker)
		favourites[ticker] = fav != 0
	}
	return tickers, favourites, rows.Err()
}

func (e *Engine) persistUpdates(userID string, items []Item) (int, error) {
	now := time.Now().Unix()
	count := 0
	for _, it := range items {
		enrichments, err := json.Marshal(it)
		if err != nil {
			continue
		}
		status := DeriveStatus(it)
		_, err = e.db.Exec(`
			INSERT INTO watchlist_items (user_id, ticker, is_favourite, status, last_refresh_status, failed_stage, last_refresh_at, enrichments)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, ticker) DO UPDATE SET
				status=excluded.status, last_refresh_status=excluded.last_refresh_status,
				failed_stage=excluded.failed_stage, last_refresh_at=excluded.last_refresh_at, enrichments=excluded.enrichments
		`, userID, it.Ticker, boolToInt(it.IsFavourite), status, string(it.LastRefreshStatus), it.FailedStage, now, string(enrichments))
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) persistArchive(userID string, items []Item) (int, error) {
	now := time.Now().Unix()
	count := 0
	for _, it := range items {
		enrichments, err := json.Marshal(it)
		if err != nil {
			continue
		}
		_, err = e.db.Exec(`
			INSERT INTO archived_watchlist_items (user_id, ticker, is_favourite, last_refresh_status, enrichments, archived_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, ticker) DO UPDATE SET
				last_refresh_status=excluded.last_refresh_status, enrichments=excluded.enrichments, archived_at=excluded.archived_at
		`, userID, it.Ticker, boolToInt(it.IsFavourite), string(it.LastRefreshStatus), string(enrichments), now)
		if err != nil {
			return count, err
		}
		_, _ = e.db.Exec(`DELETE FROM watchlist_items WHERE user_id = ? AND ticker = ?`, userID, it.Ticker)
		count++
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
