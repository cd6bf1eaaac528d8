package roots

import "sync"

// Executor runs submitted tasks asynchronously. Submit reports whether the
// task was accepted; a closed executor accepts nothing.
type Executor interface {
	Submit(task func()) bool
}

// SerialExecutor runs tasks one at a time, in submission order, on a single
// goroutine with a bounded queue. Submit blocks while the queue is full.
// Tasks must not submit to the executor running them.
type SerialExecutor struct {
	mu     sync.RWMutex
	closed bool
	queue  chan func()
	done   chan struct{}
}

// NewSerialExecutor starts an executor with room for size queued tasks.
func NewSerialExecutor(size int) *SerialExecutor {
	if size < 1 {
		size = 1
	}
	e := &SerialExecutor{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *SerialExecutor) loop() {
	defer close(e.done)
	for task := range e.queue {
		task()
	}
}

// Submit queues task.
func (e *SerialExecutor) Submit(task func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return false
	}
	e.queue <- task
	return true
}

// Close stops accepting tasks, runs everything already queued, and waits for
// the goroutine to exit. It is safe to call more than once.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}

// InlineExecutor runs tasks on the submitting goroutine.
type InlineExecutor struct{}

// Submit runs task immediately.
func (InlineExecutor) Submit(task func()) bool {
	task()
	return true
}
