// Package providers defines the narrow interfaces the orchestrator uses
// to reach external collaborators that are explicitly out of scope for
// this module (the exchange-scraping ticker-list fetcher, and the
// individual provider HTTP clients), plus in-memory stub implementations
// suitable for local runs and tests.
package providers

import (
	"context"
	"fmt"

	"github.com/catalystengine/screener/internal/domain"
)

// UniverseProvider supplies the set of tickers to screen.
type UniverseProvider interface {
	Universe(ctx context.Context) ([]string, error)
}

// PriceProvider supplies chronological price bars for a ticker.
type PriceProvider interface {
	PriceHistory(ctx context.Context, ticker string, period string) ([]domain.PriceBar, error)
}

// FinancialsProvider supplies fundamental data for a ticker.
type FinancialsProvider interface {
	Financials(ctx context.Context, ticker string) (domain.CoreFinancials, error)
}

// NewsProvider supplies recent headlines for a ticker; the payload shape
// is opaque to this module beyond being cacheable JSON.
type NewsProvider interface {
	News(ctx context.Context, ticker string) ([]byte, error)
}

// BreadthProvider supplies market-wide new-highs/new-lows counts, which
// the market-health aggregator consumes alongside the tracked indices'
// own OHLC series.
type BreadthProvider interface {
	Breadth(ctx context.Context) (newHighs, newLows int, err error)
}

// StubUniverse is a fixed in-memory universe, useful for local runs before
// a real ticker-list fetcher is wired in.
type StubUniverse struct {
	Tickers []string
}

func (s StubUniverse) Universe(ctx context.Context) ([]string, error) {
	return s.Tickers, nil
}

// StubPrices serves canned series keyed by ticker; unknown tickers report
// a not-found error so the caller's error taxonomy (404) is exercised.
type StubPrices struct {
	Series map[string][]domain.PriceBar
}

func (s StubPrices) PriceHistory(ctx context.Context, ticker, period string) ([]domain.PriceBar, error) {
	bars, ok := s.Series[ticker]
	if !ok {
		return nil, fmt.Errorf("no price data for %s: %w", ticker, ErrNotFound)
	}
	return bars, nil
}

// StubFinancials serves canned fundamentals keyed by ticker.
type StubFinancials struct {
	Data map[string]domain.CoreFinancials
}

func (s StubFinancials) Financials(ctx context.Context, ticker string) (domain.CoreFinancials, error) {
	f, ok := s.Data[ticker]
	if !ok {
		return domain.CoreFinancials{}, fmt.Errorf("no financials for %s: %w", ticker, ErrNotFound)
	}
	return f, nil
}

// StubBreadth reports zero breadth pending a real market-breadth feed.
type StubBreadth struct{}

func (StubBreadth) Breadth(ctx context.Context) (int, int, error) {
	return 0, 0, nil
}

// ErrNotFound marks a provider miss that should surface as 404, not 502/503.
var ErrNotFound = fmt.Errorf("not found")
