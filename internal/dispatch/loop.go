package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrLoopStopped = errors.New("event loop stopped")
	ErrNoResult    = errors.New("event handler returned no result")
)

// Loop runs posted closures one at a time on a single goroutine. Terminal state is only
// read or written from closures running on it.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool

	pending atomic.Int64
	ctx     context.Context
	ready   chan struct{}
	logger  *zap.Logger
}

func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		ctx:    context.Background(),
		ready:  make(chan struct{}),
		logger: logger.With(zap.String("component", "dispatch")),
	}
}

// Post enqueues fn and returns immediately. It never blocks, so closures running on the
// loop may post further work. Returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending.Add(1)
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call posts fn and waits until it has run. Must not be called from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query runs fn on the loop and returns its result. The result is handed over through a
// channel, so a caller that gave up on ctx never reads what fn writes later.
func Query[T any](ctx context.Context, l *Loop, fn func() T) (T, error) {
	var zero T
	ch := make(chan T, 1)
	if err := l.Call(ctx, func() { ch <- fn() }); err != nil {
		return zero, err
	}
	select {
	case v := <-ch:
		return v, nil
	default:
		// fn panicked
		return zero, ErrNoResult
	}
}

// Run drains the queue until ctx is cancelled. Work still queued at that point is dropped.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.ctx = ctx
	l.mu.Unlock()
	close(l.ready)

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.pending.Add(-int64(len(l.queue)))
			l.queue = nil
			l.mu.Unlock()
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer l.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Context is the context Run was started with. Asynchronous work derives from it so that
// stopping the loop aborts in-flight requests.
func (l *Loop) Context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctx
}

// Ready is closed once Run has started.
func (l *Loop) Ready() <-chan struct{} {
	return l.ready
}

// WaitIdle blocks until no closure is queued or running and no Submit is in flight.
// Scheduled tasks that have not fired yet do not count.
func (l *Loop) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if l.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Submit runs work on its own goroutine and posts done back onto the loop with the result.
func Submit[T any](l *Loop, work func(ctx context.Context) (T, error), done func(T, error)) {
	l.pending.Add(1)
	ctx := l.Context()
	go func() {
		defer l.pending.Add(-1)
		v, err := work(ctx)
		if done == nil {
			return
		}
		l.Post(func() { done(v, err) })
	}()
}
