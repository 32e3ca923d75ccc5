package store

import (
	"time"

	"github.com/rs/zerolog"
)

// TTLs for each cache table, matching spec §3. SQLite has no native
// expiring row, so expiry is enforced by these periodic sweeps rather than
// a database feature, translating the platform's WAL-checkpoint/orphan
// cleanup maintenance jobs into TTL sweeps for this domain.
const (
	PriceCacheTTL      = 342800 * time.Second
	NewsCacheTTL       = 14400 * time.Second
	FinancialsCacheTTL = 342800 * time.Second
	IndustryCacheTTL   = 86400 * time.Second
	ArchiveTTL         = 2592000 * time.Second
)

// SweepCaches deletes expired rows from the four typed caches. Any single
// table's failure is logged and does not prevent the others from running.
func SweepCaches(cacheDB *DB, log zerolog.Logger) {
	now := time.Now().Unix()

	sweepTable(cacheDB, "price_cache", "created_at", now-int64(PriceCacheTTL.Seconds()), log)
	sweepTable(cacheDB, "news_cache", "created_at", now-int64(NewsCacheTTL.Seconds()), log)
	sweepTable(cacheDB, "financials_cache", "created_at", now-int64(FinancialsCacheTTL.Seconds()), log)
	sweepTable(cacheDB, "industry_cache", "created_at", now-int64(IndustryCacheTTL.Seconds()), log)
}

func sweepTable(db *DB, table, column string, cutoff int64, log zerolog.Logger) {
	res, err := db.Exec(`DELETE FROM `+table+` WHERE `+column+` < ?`, cutoff)
	if err != nil {
		log.Warn().Err(err).Str("table", table).Msg("ttl sweep failed")
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Debug().Str("table", table).Int64("rows", n).Msg("ttl sweep removed expired rows")
	}
}

// SweepArchive deletes archived watchlist items older than ArchiveTTL.
func SweepArchive(standardDB *DB, log zerolog.Logger) {
	cutoff := time.Now().Add(-ArchiveTTL).Unix()
	sweepTable(standardDB, "archived_watchlist_items", "archived_at", cutoff, log)
}
