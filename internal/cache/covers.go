package cache

import (
	"time"

	"github.com/catalystengine/screener/internal/calendar"
)

// periodApproxDays maps a requested period to the approximate number of
// calendar days to look back when computing the first required trading day.
var periodApproxDays = map[string]int{
	"1mo": 31, "3mo": 92, "6mo": 183, "1y": 365,
	"2y": 730, "5y": 1826, "10y": 3652,
}

// periodMinRows maps a requested period to the minimum number of daily
// bars that, by row count alone, is accepted as sufficient coverage.
var periodMinRows = map[string]int{
	"1mo": 18, "3mo": 55, "6mo": 120, "1y": 240,
	"2y": 480, "5y": 1200, "10y": 2400,
}

// CoverageRequest describes what a caller is asking a cache entry to cover.
// Exactly one of StartDate or Period is meaningful; an empty Period with no
// StartDate means "no strict requirement".
type CoverageRequest struct {
	StartDate string // YYYY-MM-DD, optional
	Period    string // one of 1mo/3mo/6mo/1y/2y/5y/10y, optional
}

// Covers reports whether a cache entry whose first bar is earliestDate and
// which holds rowCount bars satisfies req, per the trading-calendar-aware rule in
// spec §4.1. now is injected for testability. Any parse failure returns
// false, forcing a refetch rather than risking a stale answer.
func Covers(earliestDate string, rowCount int, req CoverageRequest, now time.Time) bool {
	if earliestDate == "" {
		return false
	}
	cacheStart, err := time.Parse("2006-01-02", earliestDate)
	if err != nil {
		return false
	}

	if req.StartDate != "" {
		reqStart, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return false
		}
		return !cacheStart.After(reqStart)
	}

	if req.Period != "" {
		yesterday := now.UTC().AddDate(0, 0, -1)
		approxDays, ok := periodApproxDays[req.Period]
		if !ok {
			approxDays = 365
		}
		approxStart := yesterday.AddDate(0, 0, -approxDays)

		days := calendar.TradingDaysInRange(approxStart, yesterday)
		if len(days) == 0 {
			return true
		}
		requiredStart := days[0]

		minRows, ok := periodMinRows[req.Period]
		if !ok {
			minRows = 240
		}

		return !cacheStart.After(requiredStart) || rowCount >= minRows
	}

	return true
}
