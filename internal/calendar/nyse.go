// Package calendar provides an NYSE trading-day calendar used to decide
// whether a cached price series covers a requested period.
//
// No market-calendar library was found among this repository's dependency
// set, so the holiday table and weekend rule are computed here. Fixed-date
// holidays are matched on their calendar date only (a holiday falling on a
// weekend is not shifted to an observed weekday); floating holidays,
// including Good Friday via the Gregorian Easter computation, are resolved
// per year. The only caller (cache sufficiency) tolerates being off by a
// handful of trading days.
package calendar

import "time"

// Exchange identifies the trading calendar in use. Only NYSE is modeled.
type Exchange string

// NYSE is the only calendar this module understands.
const NYSE Exchange = "NYSE"

var fixedHolidays = map[string]bool{
	"01-01": true, // New Year's Day
	"06-19": true, // Juneteenth
	"07-04": true, // Independence Day
	"12-25": true, // Christmas
}

// IsTradingDay reports whether t (interpreted in UTC) is a NYSE trading day:
// not a weekend, and not one of the fixed-date holidays or a handful of
// floating holidays resolved per-year below.
func IsTradingDay(t time.Time) bool {
	t = t.UTC()
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	md := t.Format("01-02")
	if fixedHolidays[md] {
		return false
	}
	for _, h := range floatingHolidays(t.Year()) {
		if sameDate(h, t) {
			return false
		}
	}
	return true
}

// floatingHolidays returns the NYSE holidays whose date shifts year to year:
// MLK Day (3rd Monday of January), Presidents' Day (3rd Monday of
// February), Good Friday (two days before the Gregorian Easter date),
// Memorial Day (last
// Monday of May), Labor Day (1st Monday of September), Thanksgiving (4th
// Thursday of November).
func floatingHolidays(year int) []time.Time {
	return []time.Time{
		nthWeekdayOfMonth(year, time.January, time.Monday, 3),
		nthWeekdayOfMonth(year, time.February, time.Monday, 3),
		goodFriday(year),
		lastWeekdayOfMonth(year, time.May, time.Monday),
		nthWeekdayOfMonth(year, time.September, time.Monday, 1),
		nthWeekdayOfMonth(year, time.November, time.Thursday, 4),
	}
}

func nthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (n-1)*7
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lastWeekdayOfMonth(year int, month time.Month, weekday time.Weekday) time.Time {
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	last := next.AddDate(0, 0, -1)
	for last.Weekday() != weekday {
		last = last.AddDate(0, 0, -1)
	}
	return last
}

// goodFriday uses the anonymous Gregorian Easter algorithm, then subtracts
// two days.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FirstTradingDayOnOrAfter returns the first NYSE trading day on or after t.
func FirstTradingDayOnOrAfter(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for !IsTradingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// TradingDaysInRange returns every NYSE trading day in [start, end], inclusive.
func TradingDaysInRange(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
