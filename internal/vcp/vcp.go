// Package vcp implements Volatility Contraction Pattern detection:
// local peak/trough extraction, multi-contraction pattern recognition,
// and the pass/fail checks (pivot tightness, correction depth, demand
// dry-up) that together decide whether a ticker screens for VCP.
package vcp

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// counterThreshold is the consecutive-miss streak that terminates a
// peak or trough scan.
const counterThreshold = 5

// windowSize is the width of each overlapping scan window.
const windowSize = 5

// PivotPricePerc bounds how tight the final contraction must be for the
// pivot to be considered "good".
const PivotPricePerc = 0.20

// MaxCorrectionPerc is the minimum depth, relative to the pattern's first
// high, for a correction to be considered deep (and thus disqualifying).
const MaxCorrectionPerc = 0.50

// Contraction is a peak-to-trough pair within a price series.
type Contraction struct {
	HighIdx   int
	HighPrice float64
	LowIdx    int
	LowPrice  float64
}

// Pattern is a chronologically ordered, non-overlapping list of
// contractions.
type Pattern []Contraction

// FindOneContraction scans prices starting at startIdx for a single
// peak-to-trough contraction, using two sequential overlapping 5-day-window
// scans: first for the local high, then for the local low following it.
// Returns ok=false if no qualifying contraction is found.
func FindOneContraction(prices []float64, startIdx int) (c Contraction, ok bool) {
	n := len(prices)
	if startIdx >= n {
		return Contraction{}, false
	}

	highIdx, highPrice, foundHigh := scanExtremum(prices, startIdx, true)
	if !foundHigh {
		return Contraction{}, false
	}

	lowIdx, lowPrice, foundLow := scanExtremum(prices, highIdx, false)
	if !foundLow {
		return Contraction{}, false
	}

	if highIdx >= lowIdx || highPrice == lowPrice {
		return Contraction{}, false
	}

	return Contraction{HighIdx: highIdx, HighPrice: highPrice, LowIdx: lowIdx, LowPrice: lowPrice}, true
}

// scanExtremum performs one peak (findHigh=true) or trough (findHigh=false)
// scan: slide a windowSize window forward from startIdx, tracking the best
// extremum seen so far and a miss-streak counter, terminating when the
// streak reaches counterThreshold.
func scanExtremum(prices []float64, startIdx int, findHigh bool) (idx int, value float64, ok bool) {
	n := len(prices)
	if startIdx >= n {
		return 0, 0, false
	}

	localIdx := -1
	var localValue float64
	missStreak := 0

	for i := startIdx; i < n; i++ {
		end := i + windowSize
		if end > n {
			end = n
		}
		window := prices[i:end]
		if len(window) == 0 {
			break
		}

		wIdx, wVal := extremumOf(window, findHigh)
		globalIdx := i + wIdx

		better := false
		if localIdx == -1 {
			better = true
		} else if findHigh {
			better = wVal > localValue
		} else {
			better = wVal < localValue
		}

		if better {
			localIdx = globalIdx
			localValue = wVal
			missStreak = 0
		} else {
			missStreak++
		}

		if missStreak >= counterThreshold {
			break
		}
	}

	if localIdx == -1 {
		return 0, 0, false
	}
	return localIdx, localValue, true
}

// extremumOf returns the index (first occurrence wins ties) and value of
// the window's max (findHigh) or min.
func extremumOf(window []float64, findHigh bool) (idx int, value float64) {
	idx = 0
	value = window[0]
	for i := 1; i < len(window); i++ {
		if findHigh && window[i] > value {
			value = window[i]
			idx = i
		} else if !findHigh && window[i] < value {
			value = window[i]
			idx = i
		}
	}
	return idx, value
}

// FindPattern iterates FindOneContraction over the full series, advancing
// the cursor past a found contraction's low, or by one on failure,
// guaranteeing termination and strictly increasing, non-overlapping
// contractions.
func FindPattern(prices []float64) Pattern {
	var pattern Pattern
	cursor := 0
	n := len(prices)

	for cursor < n {
		c, ok := FindOneContraction(prices, cursor)
		if !ok {
			cursor++
			continue
		}
		pattern = append(pattern, c)
		cursor = c.LowIdx + 1
	}

	return pattern
}

// IsPivotGood reports whether the pattern's final contraction is tight
// enough, and the current price still above the last low, to anchor a
// buy-zone pivot.
func IsPivotGood(pattern Pattern, currentPrice float64) bool {
	if len(pattern) == 0 {
		return false
	}
	last := pattern[len(pattern)-1]
	if last.HighPrice == 0 {
		return false
	}
	depth := (last.HighPrice - last.LowPrice) / last.HighPrice
	return depth <= PivotPricePerc && currentPrice > last.LowPrice
}

// IsCorrectionDeep reports whether the pattern's overall correction --
// from its first high to its deepest low -- reaches or exceeds
// MaxCorrectionPerc.
// A zero first-high is treated as deep.
func IsCorrectionDeep(pattern Pattern) bool {
	if len(pattern) == 0 {
		return false
	}
	firstHigh := pattern[0].HighPrice
	if firstHigh == 0 {
		return true
	}

	deepestLow := pattern[0].LowPrice
	for _, c := range pattern[1:] {
		if c.LowPrice < deepestLow {
			deepestLow = c.LowPrice
		}
	}

	depth := (firstHigh - deepestLow) / firstHigh
	return depth >= MaxCorrectionPerc
}

// IsDemandDry reports whether volume during the final contraction is
// drying up: the regression slope of volume over the contraction's index
// range must not be positive, and -- when that range spans more than three
// bars -- the last three days must not show a simultaneous price decline
// with rising volume (a sign of recent selling pressure, not drying
// demand).
func IsDemandDry(pattern Pattern, prices, volumes []float64) bool {
	if len(pattern) == 0 {
		return false
	}
	last := pattern[len(pattern)-1]

	lo, hi := last.HighIdx, last.LowIdx
	if lo >= len(volumes) || hi >= len(volumes) {
		return false
	}
	if hi < lo {
		return false
	}

	contractionVolumes := volumes[lo : hi+1]
	if len(contractionVolumes) < 2 {
		return false
	}

	xs := make([]float64, len(contractionVolumes))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, contractionVolumes, nil, false)
	if slope > 0 {
		return false
	}

	if len(contractionVolumes) > 3 {
		contractionPrices := prices[lo : hi+1]
		lastPrices := contractionPrices[len(contractionPrices)-3:]
		lastVolumes := contractionVolumes[len(contractionVolumes)-3:]

		priceFalling := lastPrices[len(lastPrices)-1] < lastPrices[0]
		volumeRising := lastVolumes[len(lastVolumes)-1] > lastVolumes[0]
		if priceFalling && volumeRising {
			return false
		}
	}

	return true
}

// Footprint renders a human-readable summary of the pattern, one
// "<days>D <depth%>" entry per contraction, joined with " | ".
func Footprint(pattern Pattern) string {
	parts := make([]string, 0, len(pattern))
	for _, c := range pattern {
		days := c.LowIdx - c.HighIdx
		depth := 0.0
		if c.HighPrice != 0 {
			depth = (c.HighPrice - c.LowPrice) / c.HighPrice * 100
		}
		parts = append(parts, fmt.Sprintf("%dD %.1f%%", days, depth))
	}
	return strings.Join(parts, " | ")
}

// ScreeningResult is the aggregate verdict and evidence for a ticker.
type ScreeningResult struct {
	Pass             bool
	Footprint        string
	Pattern          Pattern
	PivotGood        bool
	CorrectionDeep   bool
	DemandDry        bool
	HasPullbackSetup bool
	Pivot            float64
	StopLoss         float64
}

// RunVCPScreening requires a non-empty pattern and passes iff the final
// contraction's pivot is good, the overall correction is not deep, and
// demand is drying up. Pivot = last high * 1.01; stop-loss = last low *
// 0.99. HasPullbackSetup flags a pattern that is still contracting --
// price sitting inside the last contraction's range without yet clearing
// a good pivot -- the setup the watchlist funnel's Buy Alert rule looks
// for once volume also contracts.
func RunVCPScreening(prices, volumes []float64) ScreeningResult {
	pattern := FindPattern(prices)
	if len(pattern) == 0 {
		return ScreeningResult{Pass: false}
	}

	currentPrice := prices[len(prices)-1]
	pivotGood := IsPivotGood(pattern, currentPrice)
	correctionDeep := IsCorrectionDeep(pattern)
	demandDry := IsDemandDry(pattern, prices, volumes)

	last := pattern[len(pattern)-1]
	hasPullbackSetup := !pivotGood && !correctionDeep && currentPrice >= last.LowPrice && currentPrice <= last.HighPrice

	return ScreeningResult{
		Pass:             pivotGood && !correctionDeep && demandDry,
		Footprint:        Footprint(pattern),
		Pattern:          pattern,
		PivotGood:        pivotGood,
		CorrectionDeep:   correctionDeep,
		DemandDry:        demandDry,
		HasPullbackSetup: hasPullbackSetup,
		Pivot:            last.HighPrice * 1.01,
		StopLoss:         last.LowPrice * 0.99,
	}
}
