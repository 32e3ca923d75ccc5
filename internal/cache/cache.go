// Package cache implements the C1 cache & rate-limit layer: typed
// per-entity caches, the delisted-ticker deny-list, and cache-covers
// sufficiency checks, all backed by the cache-profile SQLite database.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/ratelimit"
	"github.com/catalystengine/screener/internal/store"
)

// Kind identifies which typed cache an operation targets.
type Kind string

const (
	KindPrice       Kind = "price"
	KindNews        Kind = "news"
	KindFinancials  Kind = "financials"
	KindIndustry    Kind = "industry"
)

var kindTable = map[Kind]string{
	KindPrice:      "price_cache",
	KindNews:       "news_cache",
	KindFinancials: "financials_cache",
	KindIndustry:   "industry_cache",
}

var kindTTL = map[Kind]time.Duration{
	KindPrice:      store.PriceCacheTTL,
	KindNews:       store.NewsCacheTTL,
	KindFinancials: store.FinancialsCacheTTL,
	KindIndustry:   store.IndustryCacheTTL,
}

// Store is the C1 cache & rate-limit layer.
type Store struct {
	db         *store.DB
	log        zerolog.Logger
	limitersMu sync.Mutex
	limiters   map[string]*ratelimit.Limiter
}

// New builds a Store over an already-migrated cache-profile database.
func New(db *store.DB, log zerolog.Logger) *Store {
	return &Store{
		db:       db,
		log:      log.With().Str("component", "cache").Logger(),
		limiters: make(map[string]*ratelimit.Limiter),
	}
}

// Get looks up a cache entry of the given kind for ticker/key, returning
// (payload, true) only if the entry exists, has not expired, and -- for
// price entries only -- Covers(entry, req) per spec §4.1; req is ignored
// for the other kinds. A miss for any reason -- absent, expired, or
// insufficient coverage -- returns (nil, false).
func (s *Store) Get(kind Kind, ticker, key string, req CoverageRequest) (json.RawMessage, bool) {
	table, ok := kindTable[kind]
	if !ok {
		return nil, false
	}

	var payload []byte
	var earliestDate sql.NullString
	var rowCount int
	var createdAt int64
	var err error

	if kind == KindPrice {
		query := fmt.Sprintf(`SELECT payload, earliest_date, row_count, created_at FROM %s WHERE ticker = ? AND cache_key = ?`, table)
		err = s.db.QueryRow(query, ticker, key).Scan(&payload, &earliestDate, &rowCount, &createdAt)
	} else {
		query := fmt.Sprintf(`SELECT payload, created_at FROM %s WHERE ticker = ? AND cache_key = ?`, table)
		err = s.db.QueryRow(query, ticker, key).Scan(&payload, &createdAt)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("ticker", ticker).Msg("cache lookup failed, treating as miss")
		return nil, false
	}

	ttl, ok := kindTTL[kind]
	if ok {
		age := time.Since(time.Unix(createdAt, 0))
		if age > ttl {
			return nil, false
		}
	}

	if kind == KindPrice {
		if !Covers(earliestDate.String, rowCount, req, time.Now()) {
			return nil, false
		}
	}

	return payload, true
}

// Put writes payload for ticker/key with createdAt=now. For price entries,
// earliestDate/latestDate/rowCount feed future cache-covers checks.
func (s *Store) Put(kind Kind, ticker, key string, payload json.RawMessage, earliestDate, latestDate string, rowCount int) error {
	table, ok := kindTable[kind]
	if !ok {
		return fmt.Errorf("unknown cache kind %q", kind)
	}

	now := time.Now().Unix()

	var err error
	if kind == KindPrice {
		_, err = s.db.Exec(fmt.Sprintf(`
			INSERT INTO %s (ticker, cache_key, payload, earliest_date, latest_date, row_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ticker, cache_key) DO UPDATE SET
				payload=excluded.payload, earliest_date=excluded.earliest_date,
				latest_date=excluded.latest_date, row_count=excluded.row_count, created_at=excluded.created_at
		`, table), ticker, key, []byte(payload), earliestDate, latestDate, rowCount, now)
	} else {
		_, err = s.db.Exec(fmt.Sprintf(`
			INSERT INTO %s (ticker, cache_key, payload, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(ticker, cache_key) DO UPDATE SET payload=excluded.payload, created_at=excluded.created_at
		`, table), ticker, key, []byte(payload), now)
	}
	if err != nil {
		return fmt.Errorf("writing %s cache entry for %s: %w", kind, ticker, err)
	}
	return nil
}

// IsDelisted reports whether ticker carries a delisted record. Transient
// store errors soft-fail to false, per spec §4.1, so a DB hiccup never
// blocks a legitimate request.
func (s *Store) IsDelisted(ticker string) bool {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ticker_status WHERE ticker = ?`, ticker).Scan(&count)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("delisted check failed, treating as not delisted")
		return false
	}
	return count > 0
}

// MarkDelisted upserts ticker into the delisted registry with reason.
func (s *Store) MarkDelisted(ticker, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO ticker_status (ticker, status, reason, last_updated)
		VALUES (?, 'delisted', ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET status='delisted', reason=excluded.reason, last_updated=excluded.last_updated
	`, ticker, reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("marking %s delisted: %w", ticker, err)
	}
	s.log.Info().Str("ticker", ticker).Str("reason", reason).Msg("marked ticker delisted")
	return nil
}

// RateLimiter returns the shared rate limiter for providerKey, creating
// one with the given capacity over a 60-second window on first use.
func (s *Store) RateLimiter(providerKey string, capacity int) *ratelimit.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	if l, ok := s.limiters[providerKey]; ok {
		return l
	}
	l := ratelimit.New(capacity, 60*time.Second)
	s.limiters[providerKey] = l
	return l
}
