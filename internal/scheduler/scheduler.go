// Package scheduler drives the periodic triggers this service owns: a
// recurring screening job, and the daily watchlist-refresh and
// market-health beats. The ticker-goroutine-per-cadence shape mirrors the
// platform's own scheduler.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler owns the background goroutines for periodic triggers.
type Scheduler struct {
	runScreeningJob     func(ctx context.Context)
	runWatchlistBeat    func(ctx context.Context)
	runMarketHealthBeat func(ctx context.Context)
	sweepCaches         func()

	screeningInterval time.Duration
	beatHour          int
	beatMinute        int

	log     zerolog.Logger
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// Config controls the scheduler's cadences.
type Config struct {
	ScreeningInterval time.Duration // e.g. every 6h
	BeatHour          int           // UTC hour for the daily beats; no default is applied (main passes 5)
	BeatMinute        int           // default 0
}

// New builds a Scheduler. runScreeningJob fires on the screening cadence;
// runWatchlistBeat and runMarketHealthBeat both fire on the daily
// beatHour/beatMinute cadence (watchlist refresh and the C5 daily
// market-trend persistence); sweepCaches runs hourly.
func New(cfg Config, runScreeningJob, runWatchlistBeat, runMarketHealthBeat func(ctx context.Context), sweepCaches func(), log zerolog.Logger) *Scheduler {
	if cfg.ScreeningInterval <= 0 {
		cfg.ScreeningInterval = 6 * time.Hour
	}
	return &Scheduler{
		runScreeningJob:     runScreeningJob,
		runWatchlistBeat:    runWatchlistBeat,
		runMarketHealthBeat: runMarketHealthBeat,
		sweepCaches:         sweepCaches,
		screeningInterval:   cfg.ScreeningInterval,
		beatHour:            cfg.BeatHour,
		beatMinute:          cfg.BeatMinute,
		log:                 log.With().Str("component", "scheduler").Logger(),
		stop:                make(chan struct{}),
	}
}

// Start launches the background goroutines. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(3)
	go s.runScreeningLoop(ctx)
	go s.runDailyBeatLoop(ctx)
	go s.runHourlySweepLoop(ctx)

	s.log.Info().Msg("scheduler started")
}

// Stop signals every background goroutine to exit and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runScreeningLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.screeningInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.log.Info().Msg("triggering periodic screening job")
			s.runScreeningJob(ctx)
		}
	}
}

// runDailyBeatLoop polls once a minute for the configured UTC hour/minute,
// matching the platform's daily-job polling pattern, and fires at most
// once per matching minute.
func (s *Scheduler) runDailyBeatLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	lastFired := ""

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			now = now.UTC()
			key := now.Format("2006-01-02 15:04")
			if now.Hour() == s.beatHour && now.Minute() == s.beatMinute && key != lastFired {
				lastFired = key
				s.log.Info().Msg("triggering daily watchlist refresh beat")
				s.runWatchlistBeat(ctx)
				s.log.Info().Msg("triggering daily market-health beat")
				s.runMarketHealthBeat(ctx)
			}
		}
	}
}

func (s *Scheduler) runHourlySweepLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepCaches()
		}
	}
}
