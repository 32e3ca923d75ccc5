package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/catalystengine/screener/internal/domain"
	"github.com/catalystengine/screener/internal/leadership"
	"github.com/catalystengine/screener/internal/providers"
	"github.com/catalystengine/screener/internal/trend"
	"github.com/catalystengine/screener/internal/vcp"
)

// ScreeningJobType names the multi-stage screening pipeline that C6 runs.
const ScreeningJobType = "SCREENING"

// trendScreenBatchSize bounds how many tickers the trend stage evaluates
// concurrently in one batch.
const trendScreenBatchSize = 50

// screeningStageCount is the number of stages reported in progress events:
// universe -> trend -> vcp -> leadership -> metrics.
const screeningStageCount = 5

// CandidateSeries is the per-ticker series the pipeline's compute-bound
// stages operate on.
type CandidateSeries struct {
	Ticker  string
	Closes  []float64
	Volumes []float64
}

// Candidate is one final survivor's compact attached metrics.
type Candidate struct {
	Ticker            string  `json:"ticker"`
	VCPPass           bool    `json:"vcp_pass"`
	Footprint         string  `json:"vcp_footprint"`
	Pivot             float64 `json:"pivot_price"`
	StopLoss          float64 `json:"stop_loss"`
	LeadershipPass    bool    `json:"leadership_pass"`
	LeadershipProfile string  `json:"leadership_profile,omitempty"`
}

// FinancialsLookup fetches a single ticker's fundamentals for the
// leadership stage; a miss is skipped rather than aborting the batch.
type FinancialsLookup func(ctx context.Context, ticker string) (domain.CoreFinancials, error)

// MarketTrendLookup reports the prevailing market trend context
// ("Bullish"/"Bearish"/"Neutral") the leadership stage's market-trend
// check reads.
type MarketTrendLookup func(ctx context.Context) string

// RunScreeningJob drives the full funnel -- universe fetch, batched trend
// screen, fast-mode VCP analyze, leadership qualification on the
// shrinking survivor set, compact metrics attach -- emitting progress
// after each stage and persisting a summary plus one fan-out detail row
// per final candidate. Per-ticker data errors are skipped (and logged),
// never abort the batch.
func (s *Store) RunScreeningJob(ctx context.Context, jobID string, universe providers.UniverseProvider, series func(ctx context.Context, ticker string) (CandidateSeries, error), financials FinancialsLookup, marketTrend MarketTrendLookup) {
	s.StartJob(jobID)

	tickers, err := universe.Universe(ctx)
	if err != nil {
		s.FailJob(jobID, ScreeningJobType, err.Error(), "universe")
		return
	}
	s.UpdateProgress(jobID, ScreeningJobType, Running, 1, screeningStageCount, "universe", fmt.Sprintf("fetched %d tickers", len(tickers)))

	survivorsTrend := s.trendScreenBatched(ctx, jobID, tickers, series)
	s.UpdateProgress(jobID, ScreeningJobType, Running, 2, screeningStageCount, "trend", fmt.Sprintf("%d of %d survived trend screen", len(survivorsTrend), len(tickers)))

	vcpCandidates := s.vcpScreenFast(ctx, survivorsTrend, series)
	s.UpdateProgress(jobID, ScreeningJobType, Running, 3, screeningStageCount, "vcp", fmt.Sprintf("%d candidates passed vcp screen", len(vcpCandidates)))

	candidates := s.leadershipScreen(ctx, vcpCandidates, financials, marketTrend(ctx))
	s.UpdateProgress(jobID, ScreeningJobType, Running, 4, screeningStageCount, "leadership", fmt.Sprintf("%d candidates qualify on leadership", len(candidates)))

	details := make(map[string]json.RawMessage, len(candidates))
	tickerList := make([]string, 0, len(candidates))
	for _, c := range candidates {
		payload, err := json.Marshal(c)
		if err != nil {
			continue
		}
		details[c.Ticker] = payload
		tickerList = append(tickerList, c.Ticker)
	}
	s.UpdateProgress(jobID, ScreeningJobType, Running, 5, screeningStageCount, "metrics", fmt.Sprintf("attached metrics for %d candidates", len(candidates)))

	results, _ := json.Marshal(tickerList)
	summary, _ := json.Marshal(map[string]int{
		"universe_size":         len(tickers),
		"trend_survivors":       len(survivorsTrend),
		"vcp_candidates":        len(vcpCandidates),
		"leadership_candidates": len(candidates),
	})

	s.CompleteJob(jobID, ScreeningJobType, results, summary, details)
}

// trendScreenBatched evaluates tickers in fixed-size batches, each batch
// fanned out over per-ticker goroutines since trend screening has no
// cross-ticker dependency.
func (s *Store) trendScreenBatched(ctx context.Context, jobID string, tickers []string, series func(ctx context.Context, ticker string) (CandidateSeries, error)) []string {
	var survivors []string

	for start := 0; start < len(tickers); start += trendScreenBatchSize {
		end := start + trendScreenBatchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[start:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, ticker := range batch {
			wg.Add(1)
			go func(ticker string) {
				defer wg.Done()
				cs, err := series(ctx, ticker)
				if err != nil {
					s.log.Debug().Err(err).Str("ticker", ticker).Msg("skipping ticker, series lookup failed")
					return
				}
				if trend.Screen(cs.Closes).Pass {
					mu.Lock()
					survivors = append(survivors, ticker)
					mu.Unlock()
				}
			}(ticker)
		}
		wg.Wait()
	}

	return survivors
}

// vcpScreenFast runs VCP screening in fast mode (no chart payload) over
// the trend survivors, fanned out per ticker.
func (s *Store) vcpScreenFast(ctx context.Context, tickers []string, series func(ctx context.Context, ticker string) (CandidateSeries, error)) []Candidate {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var candidates []Candidate

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			cs, err := series(ctx, ticker)
			if err != nil {
				s.log.Debug().Err(err).Str("ticker", ticker).Msg("skipping ticker, series lookup failed")
				return
			}
			result := vcp.RunVCPScreening(cs.Closes, cs.Volumes)
			if !result.Pass {
				return
			}
			mu.Lock()
			candidates = append(candidates, Candidate{
				Ticker:    ticker,
				VCPPass:   result.Pass,
				Footprint: result.Footprint,
				Pivot:     result.Pivot,
				StopLoss:  result.StopLoss,
			})
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return candidates
}

// leadershipScreen runs C4 over the VCP survivor set: it fetches each
// candidate's fundamentals, groups them into industry peer pools (built
// from the same batch -- there is no broader peer universe fetch in this
// pipeline), and keeps only the candidates leadership.Evaluate passes.
// A candidate whose financials lookup fails is dropped, matching the
// per-ticker-skip policy every other stage in this pipeline follows.
func (s *Store) leadershipScreen(ctx context.Context, candidates []Candidate, financials FinancialsLookup, marketTrend string) []Candidate {
	if financials == nil {
		return candidates
	}

	finByTicker := make(map[string]domain.CoreFinancials, len(candidates))
	for _, c := range candidates {
		f, err := financials(ctx, c.Ticker)
		if err != nil {
			s.log.Debug().Err(err).Str("ticker", c.Ticker).Msg("skipping ticker, financials lookup failed")
			continue
		}
		finByTicker[c.Ticker] = f
	}

	byIndustry := make(map[string][]string)
	for ticker, f := range finByTicker {
		byIndustry[f.Industry] = append(byIndustry[f.Industry], ticker)
	}

	qualified := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		f, ok := finByTicker[c.Ticker]
		if !ok {
			continue
		}

		peers := make(map[string]domain.CoreFinancials)
		for _, peerTicker := range byIndustry[f.Industry] {
			if peerTicker == c.Ticker {
				continue
			}
			peers[peerTicker] = finByTicker[peerTicker]
		}

		verdict := leadership.Evaluate(leadership.Input{
			Ticker:       c.Ticker,
			Financials:   f,
			Peers:        peers,
			MarketTrend:  marketTrend,
			DaysSinceIPO: daysSinceIPO(f.IPODate),
		})
		if !verdict.Pass {
			continue
		}

		c.LeadershipPass = true
		c.LeadershipProfile = string(primaryProfile(verdict))
		qualified = append(qualified, c)
	}

	return qualified
}

// primaryProfile returns the first fully-passed profile named in verdict,
// which leadership.Evaluate guarantees exists whenever verdict.Pass.
func primaryProfile(verdict leadership.Verdict) leadership.ProfileName {
	for _, p := range verdict.Profiles {
		if p.AllPass {
			return p.Profile
		}
	}
	return ""
}

// daysSinceIPO parses the "YYYY-MM-DD" ipoDate string into a day count
// from now; an absent or unparseable date yields nil, which
// leadership.checkRecentIPO treats as a non-passing check rather than an
// error.
func daysSinceIPO(ipoDate *string) *int {
	if ipoDate == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *ipoDate)
	if err != nil {
		return nil
	}
	days := int(time.Since(t).Hours() / 24)
	return &days
}
