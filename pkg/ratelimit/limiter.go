// Package ratelimit implements per-upstream-source admission control:
// a trailing token window with a FIFO queue of pending tasks.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// minCapacityWait is the floor for the sleep taken when the window
	// is at capacity, so a nearly-expired timestamp doesn't busy-spin.
	minCapacityWait = 100 * time.Millisecond

	// politenessDelay is the fixed pause between consecutive tasks.
	politenessDelay = 50 * time.Millisecond
)

// ErrLimiterCleared fails every queued task when Clear is called.
var ErrLimiterCleared = errors.New("rate limiter cleared")

// Config holds one limiter's window configuration.
type Config struct {
	// Name labels the limiter in logs and metrics.
	Name string

	// MaxRequests bounds the number of admissions inside Window.
	MaxRequests int

	// Window is the trailing time window.
	Window time.Duration
}

// Named presets per upstream source. The primary catalog gets the most
// conservative window; the local custom catalog the most generous.
var (
	PresetPrimary   = Config{Name: "primary", MaxRequests: 10, Window: time.Minute}
	PresetSecondary = Config{Name: "secondary", MaxRequests: 20, Window: time.Minute}
	PresetCustom    = Config{Name: "custom", MaxRequests: 60, Window: time.Minute}
)

// Task is a unit of rate-limited work.
type Task func(ctx context.Context) (any, error)

// Status is a point-in-time view of a limiter.
type Status struct {
	RequestsInWindow int  `json:"requestsInWindow"`
	QueueLength      int  `json:"queueLength"`
	CanMakeRequest   bool `json:"canMakeRequest"`
}

type taskResult struct {
	value any
	err   error
}

type taskItem struct {
	ctx    context.Context
	fn     Task
	result chan taskResult
}

// Limiter bounds admitted requests inside a trailing time window and
// queues excess work strictly FIFO. At most one processing loop runs
// per instance, no matter how many goroutines call Execute.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	admitted []time.Time
	queue    []*taskItem
	running  bool

	logger zerolog.Logger

	// overridable in tests
	now        func() time.Time
	minWait    time.Duration
	politeness time.Duration
}

// New creates a limiter. MaxRequests is clamped to at least 1.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:        cfg,
		logger:     logger.With().Str("limiter", cfg.Name).Logger(),
		now:        time.Now,
		minWait:    minCapacityWait,
		politeness: politenessDelay,
	}
}

// Execute enqueues fn and blocks until it has run (or the limiter was
// cleared). Admission order among queued tasks is strictly FIFO; there
// is no per-task cancellation short of clearing the whole instance.
func (l *Limiter) Execute(ctx context.Context, fn Task) (any, error) {
	item := &taskItem{ctx: ctx, fn: fn, result: make(chan taskResult, 1)}

	l.mu.Lock()
	l.queue = append(l.queue, item)
	queueDepth.WithLabelValues(l.cfg.Name).Set(float64(len(l.queue)))
	start := !l.running
	if start {
		l.running = true
	}
	l.mu.Unlock()

	if start {
		go l.process()
	}

	res := <-item.result
	return res.value, res.err
}

// Status returns a pure read of the current window and queue.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return Status{
		RequestsInWindow: len(l.admitted),
		QueueLength:      len(l.queue),
		CanMakeRequest:   len(l.admitted) < l.cfg.MaxRequests,
	}
}

// Clear fails every queued task with ErrLimiterCleared and empties both
// the window and the queue. A task already dequeued by the processing
// loop still completes.
func (l *Limiter) Clear() {
	l.mu.Lock()
	cleared := l.queue
	l.queue = nil
	l.admitted = nil
	queueDepth.WithLabelValues(l.cfg.Name).Set(0)
	l.mu.Unlock()

	for _, item := range cleared {
		item.result <- taskResult{err: ErrLimiterCleared}
	}
	if len(cleared) > 0 {
		limiterCleared.WithLabelValues(l.cfg.Name).Add(float64(len(cleared)))
		l.logger.Warn().Int("tasks", len(cleared)).Msg("Limiter cleared, queued tasks failed")
	}
}

// process is the single-flight loop: prune the window, wait while at
// capacity, then run the next task FIFO with a politeness delay.
func (l *Limiter) process() {
	for {
		l.mu.Lock()
		now := l.now()
		l.pruneLocked(now)

		if len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}

		if len(l.admitted) >= l.cfg.MaxRequests {
			wait := l.admitted[0].Add(l.cfg.Window).Sub(now)
			if wait < l.minWait {
				wait = l.minWait
			}
			l.mu.Unlock()
			l.logger.Debug().Dur("wait", wait).Msg("Window at capacity, waiting")
			time.Sleep(wait)
			continue
		}

		item := l.queue[0]
		l.queue = l.queue[1:]
		l.admitted = append(l.admitted, now)
		queueDepth.WithLabelValues(l.cfg.Name).Set(float64(len(l.queue)))
		l.mu.Unlock()

		admittedTotal.WithLabelValues(l.cfg.Name).Inc()
		value, err := item.fn(item.ctx)
		item.result <- taskResult{value: value, err: err}

		time.Sleep(l.politeness)
	}
}

// pruneLocked drops admission timestamps older than the window.
// Caller must hold l.mu.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.admitted) && !l.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.admitted = append([]time.Time(nil), l.admitted[i:]...)
	}
}
