// Package trend applies the 7-rule moving-average trend filter to a
// chronological close-price series.
package trend

import "github.com/markcheno/go-talib"

// Result carries the per-rule verdicts and the overall pass/fail.
type Result struct {
	R1, R2, R3, R4, R5, R6, R7 bool
	Pass                       bool
}

// maxWindow bounds the 52-week high/low lookback to the last 252 bars.
const maxWindow = 252

// Screen evaluates the seven trend rules against closes, a chronologically
// ordered (oldest first) close-price series. Any rule whose inputs are
// undefined for lack of history evaluates to false; Pass requires all
// seven.
func Screen(closes []float64) Result {
	n := len(closes)
	if n == 0 {
		return Result{}
	}
	price := closes[n-1]

	sma := func(period int) (float64, bool) {
		return smaAt(closes, period, n-1)
	}

	sma50, ok50 := sma(50)
	sma150, ok150 := sma(150)
	sma200, ok200 := sma(200)

	var r1, r2, r4, r5 bool
	if ok150 && ok200 {
		r1 = price > sma150 && price > sma200
		r2 = sma150 > sma200
	}
	if ok50 && ok150 && ok200 {
		r4 = sma50 > sma150 && sma50 > sma200
	}
	if ok50 {
		r5 = price > sma50
	}

	var r3 bool
	if n >= 220 {
		trimmed := closes[:n-20]
		sma200Then, okThen := smaAt(trimmed, 200, len(trimmed)-1)
		if okThen && ok200 {
			r3 = sma200 > sma200Then
		}
	}

	windowStart := n - maxWindow
	if windowStart < 0 {
		windowStart = 0
	}
	window := closes[windowStart:]
	lo, hi := minMax(window)

	r6 := price >= 1.30*lo
	r7 := price >= 0.75*hi

	res := Result{R1: r1, R2: r2, R3: r3, R4: r4, R5: r5, R6: r6, R7: r7}
	res.Pass = r1 && r2 && r3 && r4 && r5 && r6 && r7
	return res
}

// smaAt computes the simple moving average of period bars ending at
// index idx (inclusive) within series. Returns ok=false if series does
// not have period bars available up to idx.
func smaAt(series []float64, period, idx int) (float64, bool) {
	if idx+1 < period || period <= 0 {
		return 0, false
	}
	window := series[idx+1-period : idx+1]
	out := talib.Sma(window, period)
	last := out[len(out)-1]
	if isNaN(last) {
		return 0, false
	}
	return last, true
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func isNaN(f float64) bool {
	return f != f
}
