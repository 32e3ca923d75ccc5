// Package watchlist implements the C7 watchlist refresh engine: funnel
// orchestration over curated tickers, pure status derivation, and the
// update/archive partition.
package watchlist

// RefreshStatus is the raw per-ticker funnel outcome.
type RefreshStatus string

const (
	Pass    RefreshStatus = "PASS"
	Fail    RefreshStatus = "FAIL"
	PendingStatus RefreshStatus = "PENDING"
	Unknown RefreshStatus = "UNKNOWN"
)

// UI-facing status labels.
const (
	StatusBuyReady = "Buy Ready"
	StatusBuyAlert = "Buy Alert"
	StatusWatch    = "Watch"
	StatusPending  = "Pending"
	StatusFailed   = "Failed"
)

const (
	buyReadyBandLower        = -5.0
	buyReadyBandUpper        = 0.0
	patternAgeThresholdDays  = 90
	highVolumeSpikeThreshold = 3.0
	volumeContractionLow     = 1.0
	volumeContractionBandLo  = 0.7
	volumeContractionBandHi  = 0.8
)

// Item is the full set of signals the status-derivation table in spec
// §4.7 reads; every enrichment field is a pointer so "absent" and
// "present but zero" are distinguishable, matching the Python
// implementation's key-presence checks.
type Item struct {
	Ticker            string
	IsFavourite       bool
	LastRefreshStatus RefreshStatus
	FailedStage       *string

	PivotPrice            *float64
	PivotProximityPercent *float64
	VCPPass               *bool
	IsPivotGood           *bool
	IsAtPivot             *bool
	PatternAgeDays        *int
	DaysSincePivot        *int
	HasPivot              *bool
	HasPullbackSetup      *bool
	VCPFootprint          *string
	VolVs50dRatio         *float64
	DayChangePct          *float64
	CurrentPrice          *float64
	VolLast               *float64
	Vol50dAvg             *float64
}

// richSignalsPresent reports whether any of the VCP/volume fields were
// attached by the funnel at all (vs. the legacy simple-mode shape).
func (it Item) richSignalsPresent() bool {
	return it.VCPPass != nil || it.IsPivotGood != nil || it.PatternAgeDays != nil ||
		it.HasPivot != nil || it.HasPullbackSetup != nil || it.VolVs50dRatio != nil || it.DayChangePct != nil
}

// DeriveStatus is the pure status-derivation function from spec §4.7's
// decision table.
func DeriveStatus(it Item) string {
	switch it.LastRefreshStatus {
	case Fail:
		return StatusFailed
	case PendingStatus, Unknown:
		return StatusPending
	case Pass:
		// fall through to the rule table below
	default:
		return StatusWatch
	}

	if !it.richSignalsPresent() {
		if it.PivotPrice != nil && it.PivotProximityPercent != nil &&
			inBand(*it.PivotProximityPercent, buyReadyBandLower, buyReadyBandUpper) {
			return StatusBuyReady
		}
		return StatusWatch
	}

	if it.PatternAgeDays != nil && *it.PatternAgeDays > patternAgeThresholdDays {
		return StatusWatch
	}

	if it.VolVs50dRatio != nil && *it.VolVs50dRatio >= highVolumeSpikeThreshold &&
		it.DayChangePct != nil && *it.DayChangePct < 0 {
		return StatusWatch
	}

	if boolVal(it.VCPPass) && boolVal(it.IsPivotGood) &&
		it.PivotPrice != nil && it.PivotProximityPercent != nil &&
		inBand(*it.PivotProximityPercent, buyReadyBandLower, buyReadyBandUpper) {
		return StatusBuyReady
	}

	if boolVal(it.HasPivot) && it.PivotPrice != nil && it.PivotProximityPercent != nil &&
		*it.PivotProximityPercent < buyReadyBandLower &&
		it.VolVs50dRatio != nil && *it.VolVs50dRatio < volumeContractionLow {
		return StatusBuyAlert
	}

	if boolVal(it.HasPullbackSetup) && it.VolVs50dRatio != nil &&
		*it.VolVs50dRatio >= volumeContractionBandLo && *it.VolVs50dRatio <= volumeContractionBandHi {
		return StatusBuyAlert
	}

	return StatusWatch
}

// PartitionResult is the to_update / to_archive split.
type PartitionResult struct {
	ToUpdate  []Item
	ToArchive []Item
}

// DeriveRefreshLists partitions items into update-vs-archive buckets:
// FAIL and not-favourite goes to archive, everything else remains active.
// Every item appears in exactly one bucket (spec §8 property 7).
func DeriveRefreshLists(items []Item) PartitionResult {
	var res PartitionResult
	for _, it := range items {
		if it.LastRefreshStatus == Fail && !it.IsFavourite {
			res.ToArchive = append(res.ToArchive, it)
		} else {
			res.ToUpdate = append(res.ToUpdate, it)
		}
	}
	return res
}

func inBand(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func boolVal(b *bool) bool {
	return b != nil && *b
}
