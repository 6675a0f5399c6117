package app

import (
	"sync"
	"time"
)

// debouncer runs fn once calls have stopped arriving for delay. fn runs
// without the lock held, on the timer goroutine or the one calling flush.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
	gen   uint64 // a timer runs fn only if no call, cancel or flush came after it
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// call (re)starts the quiet period.
func (d *debouncer) call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// stopLocked reports whether a run was pending.
func (d *debouncer) stopLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
}

// flush runs a pending call right away.
func (d *debouncer) flush() {
	d.mu.Lock()
	pending := d.stopLocked()
	d.gen++
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}
