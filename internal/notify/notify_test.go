package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	n := New()
	if n == nil {
		t.Fatal("New() returned nil")
	}
	defer n.Close()

	if n.Source() == "" {
		t.Error("Source() is empty")
	}
}

func TestNew_WithAsync(t *testing.T) {
	n := New(WithAsync(100))
	defer n.Close()
	if !n.async {
		t.Error("expected async = true")
	}

	plain := New(WithAsync(0))
	defer plain.Close()
	if plain.async {
		t.Error("WithAsync(0) should stay synchronous")
	}
}

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangePaths, "paths"},
		{ChangeCaches, "caches"},
		{ChangeType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var received atomic.Int32
	sub := n.Subscribe(func(Change) { received.Add(1) })

	n.PathsChanged("/p", nil)
	n.CachesInvalidated()
	if received.Load() != 2 {
		t.Errorf("received %d changes, want 2", received.Load())
	}

	sub.Unsubscribe()
	n.CachesInvalidated()
	if received.Load() != 2 {
		t.Error("unsubscribed observer received notification")
	}
}

func TestNotifier_SubscribePrefix(t *testing.T) {
	n := New()
	defer n.Close()

	var sub, other atomic.Int32
	n.SubscribePrefix("/p/sub", func(Change) { sub.Add(1) })
	n.SubscribePrefix(`\q`, func(Change) { other.Add(1) })

	n.PathsChanged("/p", nil)        // covers /p/sub
	n.PathsChanged("/p/sub/x/", nil) // under /p/sub
	n.PathsChanged("/p/subway", nil) // sibling, not under
	n.PathsChanged("/q/build", nil)  // under /q
	n.CachesInvalidated()            // everyone

	if sub.Load() != 3 {
		t.Errorf("/p/sub observer received %d changes, want 3", sub.Load())
	}
	if other.Load() != 2 {
		t.Errorf("/q observer received %d changes, want 2", other.Load())
	}
}

func TestChange_Matches(t *testing.T) {
	n := New()
	defer n.Close()

	var got Change
	n.Subscribe(func(c Change) { got = c })

	n.PathsChanged("/p", func(path string) bool { return path == "/p/a.kts" })
	if got.Type != ChangePaths || got.Prefix != "/p" {
		t.Fatalf("unexpected change %+v", got)
	}
	if !got.Matches("/p/a.kts") || got.Matches("/p/b.kts") {
		t.Error("Matches did not use the predicate")
	}
	if got.Source != n.Source() {
		t.Errorf("Source = %q, want %q", got.Source, n.Source())
	}
	if got.Time.IsZero() {
		t.Error("Time not stamped")
	}

	n.CachesInvalidated()
	if !got.Matches("/anything") {
		t.Error("cache changes should match every path")
	}
}

func TestNotifier_DeliveryOrder(t *testing.T) {
	n := New()
	defer n.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		n.Subscribe(func(Change) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	n.CachesInvalidated()

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want subscription order", order)
		}
	}
}

func TestNotifier_Async(t *testing.T) {
	n := New(WithAsync(10))

	var received atomic.Int32
	done := make(chan struct{})
	n.Subscribe(func(Change) {
		if received.Add(1) == 3 {
			close(done)
		}
	})

	n.PathsChanged("/p", nil)
	n.PathsChanged("/q", nil)
	n.CachesInvalidated()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out, received %d changes", received.Load())
	}
	n.Close()
}

func TestNotifier_CloseDrainsBuffer(t *testing.T) {
	n := New(WithAsync(100))

	var received atomic.Int32
	n.Subscribe(func(Change) { received.Add(1) })

	for i := 0; i < 50; i++ {
		n.CachesInvalidated()
	}
	n.Close()

	if received.Load() != 50 {
		t.Errorf("received %d changes after Close, want 50", received.Load())
	}
}

func TestNotifier_AfterClose(t *testing.T) {
	n := New()
	var received atomic.Bool
	n.Subscribe(func(Change) { received.Store(true) })

	n.Close()
	n.Close()
	n.CachesInvalidated()

	if received.Load() {
		t.Error("closed notifier delivered a change")
	}
}
