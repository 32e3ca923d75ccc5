// Package markethealth computes the posture of the three major indices
// (^GSPC, ^DJI, ^IXIC), overall market stage, correction depth, and
// consumes breadth from the data-access layer.
package markethealth

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/catalystengine/screener/internal/domain"
)

// Stage is the overall market posture.
type Stage string

const (
	Bullish Stage = "Bullish"
	Bearish Stage = "Bearish"
	Neutral Stage = "Neutral"
)

// minPeriods52Week mirrors the pandas min_periods behaviour: a rolling
// statistic is undefined until the window is full.
const minPeriods52Week = 251

// IndexReading is one index's computed posture on its penultimate bar.
type IndexReading struct {
	Symbol string
	Stage  Stage
	Price  float64
	SMA50  float64
	SMA200 float64
	High52 float64
	Low52  float64
}

// Aggregate is the overall market-health verdict.
type Aggregate struct {
	Stage           Stage
	Indices         []IndexReading
	CorrectionDepth float64 // percent, rounded to 2dp, from ^GSPC
	NewHighs        int
	NewLows         int
	BreadthRatio    float64
}

// Evaluate computes the aggregate market-health verdict from each index's
// chronological OHLC bars, keyed by symbol. Evaluation happens on the
// penultimate bar of each series to avoid intraday partials: SMA-50 and
// SMA-200 are derived from the close series, and the rolling 252-day
// 52-week high/low are derived from the high/low series, per spec. newHighs
// and newLows supply breadth as read from the data-access layer; a missing
// value means breadth is unavailable and the fields report zero.
func Evaluate(barsBySymbol map[string][]domain.PriceBar, newHighs, newLows int) Aggregate {
	readings := make([]IndexReading, 0, len(barsBySymbol))
	stageCounts := map[Stage]int{}

	for _, symbol := range []string{"^GSPC", "^DJI", "^IXIC"} {
		bars, ok := barsBySymbol[symbol]
		if !ok {
			continue
		}
		r, ok := evaluateIndex(symbol, bars)
		if !ok {
			continue
		}
		readings = append(readings, r)
		stageCounts[r.Stage]++
	}

	overall := Neutral
	if stageCounts[Bullish] == 3 {
		overall = Bullish
	} else if stageCounts[Bearish] == 3 {
		overall = Bearish
	}

	correction := 0.0
	for _, r := range readings {
		if r.Symbol == "^GSPC" && r.High52 > 0 {
			correction = round2((r.Price - r.High52) / r.High52 * 100)
		}
	}

	ratio := 0.0
	if newLows > 0 {
		ratio = float64(newHighs) / float64(newLows)
	} else if newHighs > 0 {
		ratio = float64(newHighs)
	}

	return Aggregate{
		Stage:           overall,
		Indices:         readings,
		CorrectionDepth: correction,
		NewHighs:        newHighs,
		NewLows:         newLows,
		BreadthRatio:    ratio,
	}
}

// evaluateIndex computes one index's penultimate-bar reading. A series
// shorter than minPeriods52Week+1 (one extra for the penultimate offset)
// cannot produce a defined 52-week high/low, so it returns ok=false.
func evaluateIndex(symbol string, bars []domain.PriceBar) (IndexReading, bool) {
	n := len(bars)
	if n < 2 {
		return IndexReading{}, false
	}
	penultimate := n - 2

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	sma50 := rollingSMA(closes, 50, penultimate)
	if sma50 == nil {
		return IndexReading{}, false
	}
	sma200 := rollingSMA(closes, 200, penultimate)

	// The 52-week window spans up to 252 bars ending at the penultimate
	// bar and needs at least minPeriods52Week of them to be defined.
	const window52Week = 252
	windowStart := 0
	if penultimate-window52Week+1 > 0 {
		windowStart = penultimate - window52Week + 1
	}
	if penultimate+1-windowStart < minPeriods52Week {
		return IndexReading{}, false
	}
	high := maxOf(highs[windowStart : penultimate+1])
	low := minOf(lows[windowStart : penultimate+1])

	price := closes[penultimate]

	var stage Stage
	switch {
	case price > *sma50:
		stage = Bullish
	case price < *sma50:
		stage = Bearish
	default:
		stage = Neutral
	}

	reading := IndexReading{Symbol: symbol, Stage: stage, Price: price, SMA50: *sma50, High52: high, Low52: low}
	if sma200 != nil {
		reading.SMA200 = *sma200
	}
	return reading, true
}

func rollingSMA(series []float64, period, idx int) *float64 {
	if idx+1 < period {
		return nil
	}
	window := series[idx+1-period : idx+1]
	out := talib.Sma(window, period)
	last := out[len(out)-1]
	if last != last {
		return nil
	}
	return &last
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
