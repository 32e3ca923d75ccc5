package leadership

import (
	"testing"

	"github.com/catalystengine/screener/internal/domain"
)

func ptrInt(i int) *int { return &i }

func explosiveFinancials() domain.CoreFinancials {
	return domain.CoreFinancials{
		MarketCap:    1_500_000_000,
		TotalRevenue: 400_000_000,
		QuarterlyIncome: []domain.QuarterlyIncome{
			{Period: "Q1", Revenue: 80_000_000, Income: 1_000_000},
			{Period: "Q2", Revenue: 95_000_000, Income: 2_000_000},
			{Period: "Q3", Revenue: 110_000_000, Income: 3_000_000},
			{Period: "Q4", Revenue: 150_000_000, Income: 5_000_000},
		},
		AnnualEarnings: []domain.EarningsPoint{
			{Period: "FY1", EPS: 1.0},
			{Period: "FY2", EPS: 1.5},
		},
	}
}

func TestEvaluate_PassesOnExplosiveGrowerWithSupportingSignals(t *testing.T) {
	in := Input{
		Ticker:       "ROCK",
		Financials:   explosiveFinancials(),
		Peers:        map[string]domain.CoreFinancials{"PEER1": {MarketCap: 100, TotalRevenue: 100}},
		MarketTrend:  "Bullish",
		DaysSinceIPO: nil,
	}

	verdict := Evaluate(in)

	if !verdict.Pass {
		t.Fatalf("expected pass, got fail: %s", verdict.Message)
	}

	var explosive ProfileResult
	for _, p := range verdict.Profiles {
		if p.Profile == ExplosiveGrower {
			explosive = p
		}
	}
	if !explosive.AllPass {
		t.Fatalf("expected ExplosiveGrower to fully pass")
	}
}

func TestEvaluate_FailsWhenNoProfileFullyQualifies(t *testing.T) {
	in := Input{
		Ticker:     "FLAT",
		Financials: domain.CoreFinancials{},
		MarketTrend: "Neutral",
	}

	verdict := Evaluate(in)

	if verdict.Pass {
		t.Fatalf("expected fail, got pass")
	}
	if verdict.Message != "no profile fully qualifies" {
		t.Fatalf("unexpected message: %s", verdict.Message)
	}
}

func TestEvaluate_FailsWhenSupportingProfileHasNoPassingChecks(t *testing.T) {
	// Qualifies fully on High-Potential Setup but every check in the other
	// two profiles is false: no peers (industry_leader fails), bearish
	// trend (market_trend_impact fails), no earnings history at all
	// (every ExplosiveGrower check fails).
	in := Input{
		Ticker: "SHELL",
		Financials: domain.CoreFinancials{
			MarketCap:   500_000_000,
			FloatShares: 10_000_000,
		},
		DaysSinceIPO: ptrInt(100),
		MarketTrend:  "Bearish",
	}

	verdict := Evaluate(in)

	if verdict.Pass {
		t.Fatalf("expected fail, got pass: %s", verdict.Message)
	}
}

func TestCheckIndustryLeader_RanksAgainstPeers(t *testing.T) {
	in := Input{
		Ticker:     "LEAD",
		Financials: domain.CoreFinancials{MarketCap: 10_000_000_000, TotalRevenue: 2_000_000_000},
		Peers: map[string]domain.CoreFinancials{
			"P1": {MarketCap: 1_000_000_000},
			"P2": {MarketCap: 500_000_000},
			"P3": {MarketCap: 200_000_000},
			"P4": {MarketCap: 100_000_000},
		},
	}

	result := checkIndustryLeader(in)
	if !result.Pass {
		t.Fatalf("expected LEAD to rank within top %d, got fail", industryLeaderRank)
	}
}

func TestCheckIndustryLeader_NoPeerDataFails(t *testing.T) {
	result := checkIndustryLeader(Input{Ticker: "LONE"})
	if result.Pass {
		t.Fatalf("expected fail with no peer data")
	}
}

func TestCheckRecentIPO_NilDateFails(t *testing.T) {
	result := checkRecentIPO(Input{})
	if result.Pass {
		t.Fatalf("expected fail with nil DaysSinceIPO")
	}
}

func TestCheckRecentIPO_WithinWindowPasses(t *testing.T) {
	result := checkRecentIPO(Input{DaysSinceIPO: ptrInt(200)})
	if !result.Pass {
		t.Fatalf("expected pass within recency window")
	}
}

func TestCheckMarketTrendImpact(t *testing.T) {
	if !checkMarketTrendImpact(Input{MarketTrend: "Bullish"}).Pass {
		t.Fatalf("expected bullish trend to pass")
	}
	if checkMarketTrendImpact(Input{MarketTrend: "Bearish"}).Pass {
		t.Fatalf("expected bearish trend to fail")
	}
}
