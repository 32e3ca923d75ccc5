package watchlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptrF(f float64) *float64 { return &f }
func ptrB(b bool) *bool       { return &b }
func ptrI(i int) *int         { return &i }

func TestDeriveStatus_BuyReadyThenWatchOnStalePattern(t *testing.T) {
	item := Item{
		LastRefreshStatus:     Pass,
		VCPPass:               ptrB(true),
		IsPivotGood:           ptrB(true),
		PivotProximityPercent: ptrF(-2.5),
		PivotPrice:            ptrF(100),
		PatternAgeDays:        ptrI(30),
		VolVs50dRatio:         ptrF(0.9),
	}
	require.Equal(t, StatusBuyReady, DeriveStatus(item))

	item.PatternAgeDays = ptrI(120)
	require.Equal(t, StatusWatch, DeriveStatus(item))
}

func TestDeriveStatus_FailedAndPending(t *testing.T) {
	require.Equal(t, StatusFailed, DeriveStatus(Item{LastRefreshStatus: Fail}))
	require.Equal(t, StatusPending, DeriveStatus(Item{LastRefreshStatus: PendingStatus}))
	require.Equal(t, StatusPending, DeriveStatus(Item{LastRefreshStatus: Unknown}))
}

func TestDeriveStatus_SimpleModeBuyReadyBand(t *testing.T) {
	item := Item{
		LastRefreshStatus:     Pass,
		PivotPrice:            ptrF(50),
		PivotProximityPercent: ptrF(-1),
	}
	require.Equal(t, StatusBuyReady, DeriveStatus(item))
}

func TestDeriveRefreshLists_PartitionCompleteness(t *testing.T) {
	items := []Item{
		{Ticker: "A", LastRefreshStatus: Fail, IsFavourite: false},
		{Ticker: "B", LastRefreshStatus: Fail, IsFavourite: true},
		{Ticker: "C", LastRefreshStatus: Pass},
	}
	res := DeriveRefreshLists(items)
	require.Len(t, res.ToArchive, 1)
	require.Equal(t, "A", res.ToArchive[0].Ticker)
	require.Len(t, res.ToUpdate, 2)
}
