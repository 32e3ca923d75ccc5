package vcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func canonicalSeries() []float64 {
	return []float64{
		100, 102, 101, 103, 105, 104, 102, 100, 98, 96, 97, 99, 101, 103, 104, 103,
		101, 99, 97, 95, 96, 98, 100, 102, 103, 102, 100, 98, 96, 94, 95, 97, 99, 101, 103, 105,
	}
}

func TestFindPattern_OrderingInvariant(t *testing.T) {
	prices := canonicalSeries()
	pattern := FindPattern(prices)
	require.NotEmpty(t, pattern)

	for i := 1; i < len(pattern); i++ {
		prev := pattern[i-1]
		cur := pattern[i]
		require.Less(t, prev.LowIdx, cur.HighIdx, "contractions must not overlap")
		require.Less(t, cur.HighIdx, cur.LowIdx, "each contraction's high must precede its low")
	}
}

func TestRunVCPScreening_Pass(t *testing.T) {
	pattern := Pattern{
		{HighIdx: 0, HighPrice: 100, LowIdx: 10, LowPrice: 85},
		{HighIdx: 11, HighPrice: 95, LowIdx: 20, LowPrice: 90},
	}
	prices := make([]float64, 21)
	volumes := make([]float64, 21)
	for i := range prices {
		prices[i] = 92
	}
	// decreasing volume across the final contraction [11,20], no last-3 reversal
	vol := 200.0
	for i := 11; i <= 20; i++ {
		volumes[i] = vol
		vol -= 15
	}

	currentPrice := 92.0
	require.True(t, IsPivotGood(pattern, currentPrice))
	require.False(t, IsCorrectionDeep(pattern))
	require.True(t, IsDemandDry(pattern, prices, volumes))
}

func TestIsDemandDry_RecentSellingPressureFails(t *testing.T) {
	pattern := Pattern{
		{HighIdx: 0, HighPrice: 100, LowIdx: 10, LowPrice: 90},
	}
	prices := []float64{110, 108, 106, 104, 102, 100, 98, 96, 94, 92, 92}
	volumes := []float64{200, 180, 160, 140, 120, 100, 80, 60, 50, 52, 58}

	require.False(t, IsDemandDry(pattern, prices, volumes))
}

func TestFootprint_Format(t *testing.T) {
	pattern := Pattern{
		{HighIdx: 0, HighPrice: 100, LowIdx: 10, LowPrice: 80},
	}
	require.Equal(t, "10D 20.0%", Footprint(pattern))
}

func TestIsCorrectionDeep_ZeroFirstHighIsDeep(t *testing.T) {
	pattern := Pattern{{HighIdx: 0, HighPrice: 0, LowIdx: 1, LowPrice: 5}}
	require.True(t, IsCorrectionDeep(pattern))
}
