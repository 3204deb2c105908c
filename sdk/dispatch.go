package sdk

import "sync"

// dispatcher serializes listener callbacks onto one goroutine. Events posted
// after Stop are dropped silently.
type dispatcher struct {
	events chan func()

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		events: make(chan func(), 64),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for fn := range d.events {
		fn()
	}
}

// post enqueues a callback. Blocks only when the queue is full and the
// dispatch goroutine is behind.
func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.events <- fn
}

// stop drains the queue and waits for the dispatch goroutine to exit.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.stopped = true
	close(d.events)
	d.mu.Unlock()
	<-d.done
}
