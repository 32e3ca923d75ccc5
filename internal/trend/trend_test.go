package trend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func risingSeries(n int, start, slope float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + slope*float64(i)
	}
	return out
}

func TestScreen_UptrendPassesAllRules(t *testing.T) {
	closes := risingSeries(300, 100, 0.5)
	res := Screen(closes)
	require.True(t, res.R1)
	require.True(t, res.R2)
	require.True(t, res.R3)
	require.True(t, res.R4)
	require.True(t, res.R5)
	require.True(t, res.R6)
	require.True(t, res.R7)
	require.True(t, res.Pass)
}

func TestScreen_DeathCrossFails(t *testing.T) {
	uptrend := risingSeries(250, 100, 1.0)
	last := uptrend[len(uptrend)-1]
	drop := make([]float64, 50)
	for i := range drop {
		drop[i] = last - float64(i)*5
	}
	closes := append(uptrend, drop...)

	res := Screen(closes)
	require.False(t, res.Pass)
	require.False(t, res.R4, "a sharp sustained drop should break SMA50 > SMA150/SMA200")
}

func TestScreen_InsufficientHistoryFailsClosed(t *testing.T) {
	closes := risingSeries(10, 100, 1.0)
	res := Screen(closes)
	require.False(t, res.Pass)
	require.False(t, res.R1)
	require.False(t, res.R3)
}
