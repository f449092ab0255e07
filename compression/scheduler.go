package compression

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler debounces background compression per scope: each completed
// turn resets the scope's timer, and the check runs only after the
// conversation has been quiet for the configured delay.
type Scheduler struct {
	engine *Engine
	delay  time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler driving the given engine.
func NewScheduler(engine *Engine, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := engine.cfg.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Scheduler{
		engine: engine,
		delay:  delay,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms (or re-arms) the scope's debounce timer. Calling it
// again before the delay elapses pushes the check back.
func (s *Scheduler) Schedule(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[scope]; ok && t.Stop() {
		// The previous timer never fired, release its wait slot.
		s.wg.Done()
	}
	s.wg.Add(1)
	s.timers[scope] = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.run(scope)
	})
}

func (s *Scheduler) run(scope string) {
	s.mu.Lock()
	delete(s.timers, scope)
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	decision := s.engine.ShouldCompress(ctx, scope)
	if !decision.ShouldCompress {
		s.logger.Debug("background compression skipped",
			zap.String("scope", scope),
			zap.String("reason", decision.Reason),
			zap.Int("current_tokens", decision.CurrentTokens))
		return
	}

	result, err := s.engine.CompressHistory(ctx, scope)
	if err != nil {
		s.logger.Error("background compression failed",
			zap.String("scope", scope), zap.Error(err))
		return
	}
	if !result.Success {
		s.logger.Debug("background compression skipped",
			zap.String("scope", scope), zap.String("reason", result.Reason))
	}
}

// Close stops all pending timers. Timers that already fired run to
// completion; Close waits for them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for scope, t := range s.timers {
		if t.Stop() {
			// Timer never fired, release its wait slot.
			s.wg.Done()
		}
		delete(s.timers, scope)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
