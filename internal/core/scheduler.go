package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler drives a tick function at a fixed interval.
//
// The first tick runs immediately on Start. A tick receives a context that
// is detached from Stop, so a batch that has started always finishes.
type Scheduler struct {
	interval time.Duration
	tick     func(context.Context)

	// Lifecycle management
	running bool
	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler that calls tick every interval.
func NewScheduler(interval time.Duration, tick func(context.Context)) *Scheduler {
	return &Scheduler{interval: interval, tick: tick}
}

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.running = true
	log.Info().Dur("interval", s.interval).Msg("Scheduler started")

	return nil
}

// Stop halts further ticks and waits for the current one to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	log.Info().Msg("Stopping scheduler")
	s.cancel()
	s.wg.Wait()

	s.running = false
	log.Info().Msg("Scheduler stopped")
}

// IsRunning returns whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stop may have raced the ticker.
			if ctx.Err() != nil {
				return
			}
			s.tick(context.WithoutCancel(ctx))
		}
	}
}
