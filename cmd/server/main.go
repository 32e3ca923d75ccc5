// Command server is the composition root: it loads configuration, opens
// both SQLite databases, wires every module together, starts the HTTP
// server and background scheduler, and shuts down gracefully on signal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catalystengine/screener/internal/cache"
	"github.com/catalystengine/screener/internal/config"
	"github.com/catalystengine/screener/internal/domain"
	"github.com/catalystengine/screener/internal/jobs"
	"github.com/catalystengine/screener/internal/markethealth"
	"github.com/catalystengine/screener/internal/providers"
	"github.com/catalystengine/screener/internal/scheduler"
	"github.com/catalystengine/screener/internal/server"
	"github.com/catalystengine/screener/internal/server/analyzehandlers"
	"github.com/catalystengine/screener/internal/server/datahandlers"
	"github.com/catalystengine/screener/internal/server/jobshandlers"
	"github.com/catalystengine/screener/internal/server/monitorhandlers"
	"github.com/catalystengine/screener/internal/server/screenhandlers"
	"github.com/catalystengine/screener/internal/store"
	"github.com/catalystengine/screener/internal/watchlist"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; fall back to a bare stderr logger so the startup
		// failure is still visible.
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	cacheDB, err := store.Open(store.Config{DataDir: cfg.DataDir, Name: "cache.db", Profile: store.ProfileCache}, log)
	if err != nil {
		return fmt.Errorf("opening cache db: %w", err)
	}
	defer cacheDB.Close()
	if err := store.Migrate(cacheDB); err != nil {
		return fmt.Errorf("migrating cache db: %w", err)
	}

	standardDB, err := store.Open(store.Config{DataDir: cfg.DataDir, Name: "standard.db", Profile: store.ProfileStandard}, log)
	if err != nil {
		return fmt.Errorf("opening standard db: %w", err)
	}
	defer standardDB.Close()
	if err := store.Migrate(standardDB); err != nil {
		return fmt.Errorf("migrating standard db: %w", err)
	}

	cacheStore := cache.New(cacheDB, log)
	jobsStore := jobs.New(standardDB, log)

	// Providers are stubbed pending a real ticker-service/price-vendor
	// integration; PriceHistory results still flow through the cache layer
	// below so the rate-limit and TTL behavior is exercised end to end.
	universe := providers.StubUniverse{Tickers: []string{}}
	prices := providers.StubPrices{Series: map[string][]domain.PriceBar{}}
	financials := providers.StubFinancials{Data: map[string]domain.CoreFinancials{}}
	breadth := providers.StubBreadth{}

	cachedPriceHistory := func(ctx context.Context, ticker, period string) ([]domain.PriceBar, error) {
		if cacheStore.IsDelisted(ticker) {
			return nil, fmt.Errorf("%s is delisted: %w", ticker, providers.ErrNotFound)
		}

		req := cache.CoverageRequest{Period: period}
		if cached, ok := cacheStore.Get(cache.KindPrice, ticker, period, req); ok {
			var bars []domain.PriceBar
			if err := json.Unmarshal(cached, &bars); err == nil {
				return bars, nil
			}
		}

		limiter := cacheStore.RateLimiter("prices", cfg.FinnhubRateLimitPerMinute)
		limiter.Acquire()

		bars, err := prices.PriceHistory(ctx, ticker, period)
		if err != nil {
			if errors.Is(err, providers.ErrNotFound) {
				if markErr := cacheStore.MarkDelisted(ticker, "not_found"); markErr != nil {
					log.Warn().Err(markErr).Str("ticker", ticker).Msg("failed to mark ticker delisted")
				}
			}
			return nil, err
		}

		if payload, err := json.Marshal(bars); err == nil && len(bars) > 0 {
			_ = cacheStore.Put(cache.KindPrice, ticker, period, payload, bars[0].Date, bars[len(bars)-1].Date, len(bars))
		}
		return bars, nil
	}

	seriesLookup := func(ctx context.Context, ticker string) (jobs.CandidateSeries, error) {
		bars, err := cachedPriceHistory(ctx, ticker, "1y")
		if err != nil {
			return jobs.CandidateSeries{}, err
		}
		closes := make([]float64, len(bars))
		volumes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
			volumes[i] = b.Volume
		}
		return jobs.CandidateSeries{Ticker: ticker, Closes: closes, Volumes: volumes}, nil
	}

	watchlistPrices := func(ctx context.Context, ticker string) (watchlist.PriceSeries, error) {
		bars, err := cachedPriceHistory(ctx, ticker, "1y")
		if err != nil {
			return watchlist.PriceSeries{}, err
		}
		closes := make([]float64, len(bars))
		volumes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
			volumes[i] = b.Volume
		}
		return watchlist.PriceSeries{Closes: closes, Volumes: volumes}, nil
	}

	watchlistEngine := watchlist.NewEngine(standardDB, watchlistPrices, log)

	indexBars := func(ctx context.Context) (map[string][]domain.PriceBar, error) {
		symbols := []string{"^GSPC", "^DJI", "^IXIC"}
		out := make(map[string][]domain.PriceBar, len(symbols))
		for _, sym := range symbols {
			bars, err := cachedPriceHistory(ctx, sym, "2y")
			if err != nil {
				continue
			}
			out[sym] = bars
		}
		return out, nil
	}

	marketHealthEval := func(ctx context.Context) (markethealth.Aggregate, error) {
		bars, err := indexBars(ctx)
		if err != nil {
			return markethealth.Aggregate{}, err
		}
		newHighs, newLows, err := breadth.Breadth(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("breadth lookup failed, evaluating market health without it")
		}
		return markethealth.Evaluate(bars, newHighs, newLows), nil
	}

	marketTrendFn := func(ctx context.Context) string {
		agg, err := marketHealthEval(ctx)
		if err != nil {
			return string(markethealth.Neutral)
		}
		return string(agg.Stage)
	}

	financialsLookup := func(ctx context.Context, ticker string) (domain.CoreFinancials, error) {
		return financials.Financials(ctx, ticker)
	}

	pricesHandlerAdapter := providerFunc(cachedPriceHistory)

	analyzeH := analyzehandlers.New(pricesHandlerAdapter, log)
	screenH := screenhandlers.New(pricesHandlerAdapter, log)
	jobsH := jobshandlers.New(jobsStore, universe, seriesLookup, jobs.FinancialsLookup(financialsLookup), jobs.MarketTrendLookup(marketTrendFn), log)
	monitorH := monitorhandlers.New(standardDB, marketHealthEval, watchlistEngine, log)
	dataH := datahandlers.New(pricesHandlerAdapter, log)

	srv := server.New(log, analyzeH, screenH, jobsH, monitorH, dataH)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	sched := scheduler.New(
		scheduler.Config{ScreeningInterval: 6 * time.Hour, BeatHour: 5, BeatMinute: 0},
		func(ctx context.Context) {
			jobID, err := jobsStore.CreateJob(jobs.ScreeningJobType, nil, "scheduler", "")
			if err != nil {
				log.Warn().Err(err).Msg("failed to create scheduled screening job")
				return
			}
			jobsStore.RunScreeningJob(ctx, jobID, universe, seriesLookup, financialsLookup, marketTrendFn)
		},
		func(ctx context.Context) {
			if _, err := watchlistEngine.RefreshWatchlist(ctx, cfg.WatchlistUserID); err != nil {
				log.Warn().Err(err).Msg("scheduled watchlist refresh failed")
			}
		},
		func(ctx context.Context) {
			agg, err := marketHealthEval(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("scheduled market-health evaluation failed")
				return
			}
			date := time.Now().UTC().Format("2006-01-02")
			if err := store.UpsertMarketTrend(standardDB, date, string(agg.Stage)); err != nil {
				log.Warn().Err(err).Msg("failed to persist market trend")
			}
		},
		func() {
			store.SweepCaches(cacheDB, log)
			store.SweepArchive(standardDB, log)
		},
		log,
	)

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	sched.Start(schedulerCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	cancelScheduler()
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

// providerFunc adapts a plain function to providers.PriceProvider.
type providerFunc func(ctx context.Context, ticker, period string) ([]domain.PriceBar, error)

func (f providerFunc) PriceHistory(ctx context.Context, ticker, period string) ([]domain.PriceBar, error) {
	return f(ctx, ticker, period)
}
