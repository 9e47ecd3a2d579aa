package termstate

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule prunes sessions whose tracked state has gone
// stale every 30 seconds. Grounded on
// internal/shell/process_registry.go's sweeper goroutine, rescheduled
// onto a cron expression instead of a bare time.Ticker (see
// SPEC_FULL.md's domain-stack wiring of robfig/cron/v3).
const DefaultSweepSchedule = "@every 30s"

// DefaultIdleTTL is how long a session may sit idle with no activity
// before the sweeper removes its tracked state.
const DefaultIdleTTL = 30 * time.Minute

// Sweeper periodically removes Tracker entries that have been idle
// past their TTL and (optionally, via AddHostProbe) runs a periodic
// host-profile re-probe on the same scheduler at its own cron
// expression.
type Sweeper struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper builds a Sweeper bound to tracker, logging via logger (or
// slog.Default() if nil).
func NewSweeper(tracker *Tracker, idleTTL time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	c := cron.New()
	_, _ = c.AddFunc(DefaultSweepSchedule, func() {
		tracker.mu.Lock()
		var stale []string
		for id, st := range tracker.sessions {
			if st.CurrentExecution == nil && time.Since(st.LastActivity) > idleTTL {
				stale = append(stale, id)
			}
		}
		for _, id := range stale {
			delete(tracker.sessions, id)
		}
		tracker.mu.Unlock()

		if len(stale) > 0 {
			logger.Debug("swept stale terminal sessions", "count", len(stale))
		}
	})

	return &Sweeper{cron: c, logger: logger}
}

// Start begins the sweep schedule. Safe to call once.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() { <-s.cron.Stop().Done() }

// AddHostProbe registers an additional cron job on the same scheduler
// that re-runs the host-profile probe at the given expression.
func (s *Sweeper) AddHostProbe(expr string, probe func()) error {
	_, err := s.cron.AddFunc(expr, probe)
	return err
}
