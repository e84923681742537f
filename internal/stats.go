package internal

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats periodically logs how many items went through a component
// since the previous report.
type Stats struct {
	l *Logger

	interval time.Duration

	itemCount  atomic.Uint64
	batchCount atomic.Uint64
}

func NewStats(l *Logger, interval time.Duration) *Stats {
	if interval <= 0 {
		interval = time.Second
	}

	return &Stats{
		l: l,

		interval: interval,
	}
}

func (s *Stats) RunStats(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			itemCount := s.itemCount.Swap(0)
			batchCount := s.batchCount.Swap(0)

			if itemCount == 0 {
				continue
			}

			perSec := float64(itemCount) / s.interval.Seconds()
			s.l.Info("stats", "items", itemCount, "batches", batchCount, "items_per_sec", perSec)
		}
	}
}

func (s *Stats) AddItems(n int) {
	s.itemCount.Add(uint64(n))
	s.batchCount.Add(1)
}
