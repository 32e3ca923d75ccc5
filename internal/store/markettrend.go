package store

import "fmt"

// UpsertMarketTrend records one day's overall market trend, keyed by date
// (YYYY-MM-DD) per spec §3's `{date, trend}` entity. Running the daily
// market-health beat twice in the same day overwrites rather than
// duplicates the prior snapshot.
func UpsertMarketTrend(db *DB, date, trend string) error {
	_, err := db.Exec(`
		INSERT INTO market_trends (date, trend)
		VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET trend = excluded.trend
	`, date, trend)
	if err != nil {
		return fmt.Errorf("upserting market trend for %s: %w", date, err)
	}
	return nil
}
