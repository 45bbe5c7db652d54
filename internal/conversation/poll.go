package conversation

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the refetch cadence while a conversation is open.
const DefaultPollInterval = 5 * time.Second

// PollSession runs one fetch immediately and then one per interval until it
// is stopped. Cycles never overlap; a slow cycle swallows the ticks it spans.
type PollSession struct {
	interval time.Duration
	cycle    func(context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func startPollSession(parent context.Context, interval time.Duration, cycle func(context.Context)) *PollSession {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &PollSession{interval: interval, cycle: cycle}
	s.ctx, s.cancel = context.WithCancel(parent)
	s.wg.Add(1)
	go s.run()
	return s
}

// Context is cancelled when the session stops.
func (s *PollSession) Context() context.Context { return s.ctx }

// Interval returns the poll cadence.
func (s *PollSession) Interval() time.Duration { return s.interval }

// Stop cancels the timer and any in-flight cycle and waits for the loop to
// exit. Safe to call more than once.
func (s *PollSession) Stop() {
	s.once.Do(s.cancel)
	s.wg.Wait()
}

func (s *PollSession) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.ctx.Err() != nil {
				return
			}
			s.cycle(s.ctx)
		}
	}
}
