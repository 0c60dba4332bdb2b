package channel

import (
	"sync"
	"time"
)

// limiter applies at most one call per window with leading+trailing
// semantics: the first call in a quiet period runs immediately, further
// calls within the window coalesce into a single trailing run of the most
// recent function. The last call of any burst is never dropped.
//
// A window of zero or less runs every call inline; tests rely on this.
type limiter struct {
	mu      sync.Mutex
	window  time.Duration
	lastRun time.Time
	pending func()
	timer   *time.Timer
	stopped bool
}

func newLimiter(window time.Duration) *limiter {
	return &limiter{window: window}
}

// Do schedules fn under the rate limit.
func (l *limiter) Do(fn func()) {
	if l.window <= 0 {
		fn()
		return
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	if l.timer != nil {
		// A trailing run is already scheduled; keep only the latest fn.
		l.pending = fn
		l.mu.Unlock()
		return
	}
	now := time.Now()
	if since := now.Sub(l.lastRun); since >= l.window {
		l.lastRun = now
		l.mu.Unlock()
		fn()
		return
	}
	l.pending = fn
	wait := l.window - now.Sub(l.lastRun)
	l.timer = time.AfterFunc(wait, l.fire)
	l.mu.Unlock()
}

func (l *limiter) fire() {
	l.mu.Lock()
	fn := l.pending
	l.pending = nil
	l.timer = nil
	l.lastRun = time.Now()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped || fn == nil {
		return
	}
	fn()
}

// Stop cancels any scheduled trailing run.
func (l *limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.pending = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// debouncer delays a call until a quiet window has elapsed since the most
// recent invocation (trailing edge only). Rapid repeats collapse into a
// single run of the latest function.
//
// A window of zero or less runs every call inline; tests rely on this.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending func()
	timer   *time.Timer
	stopped bool
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// Do schedules fn, superseding any not-yet-run predecessor.
func (d *debouncer) Do(fn func()) {
	if d.window <= 0 {
		fn()
		return
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = fn
	if d.timer != nil {
		d.timer.Reset(d.window)
		d.mu.Unlock()
		return
	}
	d.timer = time.AfterFunc(d.window, d.fire)
	d.mu.Unlock()
}

func (d *debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()
	if stopped || fn == nil {
		return
	}
	fn()
}

// Stop cancels any scheduled run.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
