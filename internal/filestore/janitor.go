package filestore

import (
	"context"
	"errors"
	"time"

	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/metrics"
)

// Janitor removes artifacts that were never served or whose request died
// before cleanup ran.
type Janitor struct {
	Store    Store
	MaxAge   time.Duration
	Interval time.Duration
	// Areas swept; nil means all of them.
	Areas []Area
	Now   func() time.Time
}

// Run sweeps every Interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.Sweep(ctx); n > 0 {
				logger.Infof("janitor: removed %d stale artifacts", n)
			}
		}
	}
}

// Sweep removes artifacts older than MaxAge and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	areas := j.Areas
	if areas == nil {
		areas = Areas
	}
	cutoff := now().Add(-j.MaxAge)
	removed := 0
	for _, area := range areas {
		items, err := j.Store.List(ctx, area)
		if err != nil {
			logger.Warnf("janitor: list %s: %v", area, err)
			continue
		}
		for _, it := range items {
			if !it.ModTime.Before(cutoff) {
				continue
			}
			if err := j.Store.Remove(ctx, area, it.Name); err != nil && !errors.Is(err, ErrNotFound) {
				logger.Warnf("janitor: remove %s/%s: %v", area, it.Name, err)
				metrics.CleanupFailures.WithLabelValues(string(area)).Inc()
				continue
			}
			metrics.JanitorRemoved.WithLabelValues(string(area)).Inc()
			removed++
		}
	}
	return removed
}

// Discard removes an artifact after use. Failures are logged and counted,
// never returned: the response that triggered the cleanup is already decided.
func Discard(ctx context.Context, s Store, area Area, name string) {
	if name == "" {
		return
	}
	if err := s.Remove(ctx, area, name); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Errorf("error deleting %s/%s: %v", area, name, err)
		metrics.CleanupFailures.WithLabelValues(string(area)).Inc()
	}
}
