package dispatch

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a handle to a scheduled callback. Cancel may be called any number of times; only
// the first call has an effect. A task cancelled after its timer fired but before its
// callback ran on the loop never runs the callback.
type Task interface {
	Cancel()
}

// Clock schedules callbacks onto a Loop.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Task
}

type task struct {
	once      sync.Once
	cancelled atomic.Bool
	stop      func()
}

func (t *task) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		if t.stop != nil {
			t.stop()
		}
	})
}

func (t *task) fire(fn func()) {
	if t.cancelled.Load() {
		return
	}
	t.cancelled.Store(true)
	fn()
}

type realClock struct {
	loop *Loop
}

// NewClock returns a wall clock whose callbacks run on loop.
func NewClock(loop *Loop) Clock {
	return realClock{loop: loop}
}

func (c realClock) Now() time.Time {
	return time.Now()
}

func (c realClock) AfterFunc(d time.Duration, fn func()) Task {
	t := &task{}
	timer := time.AfterFunc(d, func() {
		c.loop.Post(func() { t.fire(fn) })
	})
	t.stop = func() { timer.Stop() }
	return t
}

// ManualClock only moves when Advance is called. Used by tests.
type ManualClock struct {
	mu     sync.Mutex
	loop   *Loop
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at  time.Time
	seq int
	t   *task
	fn  func()
}

func NewManualClock(loop *Loop, start time.Time) *ManualClock {
	return &ManualClock{loop: loop, now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	mt := &manualTimer{at: c.now.Add(d), seq: c.seq, t: &task{}, fn: fn}
	c.timers = append(c.timers, mt)
	return mt.t
}

// Advance moves the clock forward and posts every due callback onto the loop in deadline order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*manualTimer
	for _, mt := range c.timers {
		if !mt.at.After(c.now) {
			due = append(due, mt)
		} else {
			rest = append(rest, mt)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, mt := range due {
		mt := mt
		c.loop.Post(func() { mt.t.fire(mt.fn) })
	}
}

// Scheduled returns the number of timers that have not fired and were not cancelled.
func (c *ManualClock) Scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, mt := range c.timers {
		if !mt.t.cancelled.Load() {
			n++
		}
	}
	return n
}
