package settings

import (
	"context"
	"sync"
	"time"
)

// Poller reloads a Store when its file's modification time changes.
// Changes are debounced: a reload runs once the file has been quiet for the
// debounce period.
type Poller struct {
	store    *Store
	interval time.Duration
	debounce time.Duration
	onError  func(error)

	mu      sync.Mutex
	lastMod time.Time
	pending time.Time // zero when no change is waiting
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// PollOption configures a Poller.
type PollOption func(*Poller)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) PollOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) PollOption {
	return func(p *Poller) {
		if d >= 0 {
			p.debounce = d
		}
	}
}

// WithErrorHandler receives reload failures. By default they are logged.
func WithErrorHandler(fn func(error)) PollOption {
	return func(p *Poller) { p.onError = fn }
}

// NewPoller creates a poller for store.
func NewPoller(store *Store, opts ...PollOption) *Poller {
	p := &Poller{
		store:    store,
		interval: 500 * time.Millisecond,
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.onError == nil {
		p.onError = func(err error) { store.log.Warn("reload failed: %v", err) }
	}
	p.lastMod = p.modTime()
	return p
}

// Start begins polling. It is a no-op when already running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop stops polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.Check(now)
		}
	}
}

// Check compares the file's modification time with the last one seen and
// reloads once a change has been quiet for the debounce period. It reports
// whether a reload ran.
func (p *Poller) Check(now time.Time) bool {
	mod := p.modTime()

	p.mu.Lock()
	if !mod.Equal(p.lastMod) {
		p.lastMod = mod
		p.pending = now
	}
	due := !p.pending.IsZero() && now.Sub(p.pending) >= p.debounce
	if due {
		p.pending = time.Time{}
	}
	p.mu.Unlock()

	if !due {
		return false
	}
	if err := p.store.Reload(); err != nil {
		p.onError(err)
	}
	return true
}

// modTime returns the settings file's modification time, zero when missing.
func (p *Poller) modTime() time.Time {
	info, err := p.store.fs.Stat(p.store.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
