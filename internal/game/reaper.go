package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultReapInterval is how often idle games are swept.
const DefaultReapInterval = 5 * time.Minute

// Sweeper is implemented by engines whose instances can go idle.
// ExpireIdle destroys every instance whose last activity is older than the
// engine's idle threshold relative to now, and returns how many it removed.
type Sweeper interface {
	ExpireIdle(now time.Time) int
}

// Reaper periodically force-expires stale games and sessions.
type Reaper struct {
	interval time.Duration
	sweepers map[string]Sweeper
	now      func() time.Time
}

// NewReaper creates a reaper that sweeps every interval.
func NewReaper(interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		interval: interval,
		sweepers: make(map[string]Sweeper),
		now:      time.Now,
	}
}

// Add registers a sweeper under a name used in logs.
func (r *Reaper) Add(name string, s Sweeper) {
	r.sweepers[name] = s
}

// Sweep runs one pass over every sweeper and returns the total removed.
func (r *Reaper) Sweep() int {
	now := r.now()
	total := 0
	for name, s := range r.sweepers {
		n := s.ExpireIdle(now)
		if n > 0 {
			log.Info().Str("kind", name).Int("removed", n).Msg("Reaped idle games")
		}
		total += n
	}
	return total
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}
