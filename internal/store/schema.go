package store

import "fmt"

// cacheSchema is applied to the cache-profile database: one table per
// typed cache (price, news, financials, industry) plus the delisted
// registry. TTL is enforced by a sweep job (see sweep.go), not by SQLite
// itself, since SQLite has no native expiring-row feature.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS price_cache (
	ticker TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	earliest_date TEXT,
	latest_date TEXT,
	row_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (ticker, cache_key)
);
CREATE INDEX IF NOT EXISTS idx_price_cache_created_at ON price_cache(created_at);

CREATE TABLE IF NOT EXISTS news_cache (
	ticker TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (ticker, cache_key)
);
CREATE INDEX IF NOT EXISTS idx_news_cache_created_at ON news_cache(created_at);

CREATE TABLE IF NOT EXISTS financials_cache (
	ticker TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (ticker, cache_key)
);
CREATE INDEX IF NOT EXISTS idx_financials_cache_created_at ON financials_cache(created_at);

CREATE TABLE IF NOT EXISTS industry_cache (
	ticker TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (ticker, cache_key)
);
CREATE INDEX IF NOT EXISTS idx_industry_cache_created_at ON industry_cache(created_at);

CREATE TABLE IF NOT EXISTS ticker_status (
	ticker TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	reason TEXT,
	last_updated INTEGER NOT NULL
);
`

// standardSchema is applied to the standard-profile database: jobs,
// fan-out results, watchlist items and their archive, and the market
// trend table.
const standardSchema = `
CREATE TABLE IF NOT EXISTS screening_jobs (
	job_id TEXT PRIMARY KEY,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER,
	options TEXT,
	progress_log TEXT NOT NULL DEFAULT '[]',
	progress_snapshot TEXT,
	results TEXT,
	result_summary TEXT,
	error_message TEXT,
	error_step TEXT,
	trigger_source TEXT,
	parent_job_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_screening_jobs_created_at ON screening_jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS screening_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	processed_at INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_screening_results_ticker ON screening_results(ticker);
CREATE INDEX IF NOT EXISTS idx_screening_results_processed_at ON screening_results(processed_at DESC);
CREATE INDEX IF NOT EXISTS idx_screening_results_job_id ON screening_results(job_id);

CREATE TABLE IF NOT EXISTS watchlist_items (
	user_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	is_favourite INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'Pending',
	last_refresh_status TEXT NOT NULL DEFAULT 'PENDING',
	failed_stage TEXT,
	last_refresh_at INTEGER,
	enrichments TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (user_id, ticker)
);

CREATE TABLE IF NOT EXISTS archived_watchlist_items (
	user_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	is_favourite INTEGER NOT NULL DEFAULT 0,
	last_refresh_status TEXT NOT NULL,
	enrichments TEXT NOT NULL DEFAULT '{}',
	archived_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, ticker)
);
CREATE INDEX IF NOT EXISTS idx_archived_watchlist_items_archived_at ON archived_watchlist_items(archived_at);

CREATE TABLE IF NOT EXISTS market_trends (
	date TEXT PRIMARY KEY,
	trend TEXT NOT NULL
);
`

// Migrate applies the appropriate schema to db based on its profile.
func Migrate(db *DB) error {
	var ddl string
	switch db.Profile {
	case ProfileCache:
		ddl = cacheSchema
	case ProfileStandard:
		ddl = standardSchema
	default:
		return fmt.Errorf("unknown profile %q for database %s", db.Profile, db.Name)
	}

	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("migrating %s: %w", db.Name, err)
	}
	return nil
}
