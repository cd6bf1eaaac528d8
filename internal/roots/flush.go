package roots

import (
	"sync/atomic"
	"time"
)

// ledgerFlusher coalesces ledger flush requests. At most one flush is
// pending at a time; a request arriving while a flush runs schedules exactly
// one follow-up.
type ledgerFlusher struct {
	scheduled atomic.Bool
	exec      Executor
	delay     time.Duration
	flush     func()
}

func newLedgerFlusher(exec Executor, delay time.Duration, flush func()) *ledgerFlusher {
	return &ledgerFlusher{exec: exec, delay: delay, flush: flush}
}

// Schedule requests a flush. It reports whether a new flush was submitted.
func (f *ledgerFlusher) Schedule() bool {
	if !f.scheduled.CompareAndSwap(false, true) {
		return false
	}
	if !f.exec.Submit(f.run) {
		f.scheduled.Store(false)
		return false
	}
	return true
}

// Pending reports whether a flush is scheduled but has not started.
func (f *ledgerFlusher) Pending() bool {
	return f.scheduled.Load()
}

func (f *ledgerFlusher) run() {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	// Cleared before flushing: changes recorded from here on are either
	// picked up by this flush or schedule the next one.
	f.scheduled.Store(false)
	f.flush()
}
