package markethealth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystengine/screener/internal/domain"
)

func buildBars(n int, base, slope float64) []domain.PriceBar {
	out := make([]domain.PriceBar, n)
	for i := range out {
		close := base + slope*float64(i)
		out[i] = domain.PriceBar{
			Close: close,
			High:  close + 1,
			Low:   close - 1,
		}
	}
	return out
}

func TestEvaluate_AllBullishWhenAboveSMA50(t *testing.T) {
	series := buildBars(260, 100, 1.0)
	bars := map[string][]domain.PriceBar{
		"^GSPC": series,
		"^DJI":  series,
		"^IXIC": series,
	}
	agg := Evaluate(bars, 400, 100)
	require.Equal(t, Bullish, agg.Stage)
	require.Len(t, agg.Indices, 3)
	require.Equal(t, 4.0, agg.BreadthRatio)
	for _, r := range agg.Indices {
		require.Greater(t, r.SMA200, 0.0)
		require.Greater(t, r.High52, 0.0)
		require.Greater(t, r.Low52, 0.0)
		require.Less(t, r.Low52, r.High52)
	}
}

func TestEvaluate_MixedIsNeutral(t *testing.T) {
	up := buildBars(260, 100, 1.0)
	down := buildBars(260, 360, -1.0)
	bars := map[string][]domain.PriceBar{
		"^GSPC": up,
		"^DJI":  down,
		"^IXIC": up,
	}
	agg := Evaluate(bars, 0, 0)
	require.Equal(t, Neutral, agg.Stage)
}

func TestEvaluate_InsufficientHistorySkipsIndex(t *testing.T) {
	short := buildBars(10, 100, 1.0)
	bars := map[string][]domain.PriceBar{"^GSPC": short}
	agg := Evaluate(bars, 0, 0)
	require.Empty(t, agg.Indices)
	require.Equal(t, Neutral, agg.Stage)
}
