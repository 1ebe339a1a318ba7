package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects events and emits them once no new event has
// arrived for the delay. Repeated events for one path keep only the latest.
type BatchDebouncer struct {
	delay   time.Duration
	emit    func([]Event)
	mu      sync.Mutex
	timer   *time.Timer
	events  []Event
	stopped bool
	// emitting tracks batches handed to emit.
	emitting sync.WaitGroup
}

// NewBatchDebouncer creates a batch debouncer.
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{delay: delay, emit: emit}
}

// Add queues an event and restarts the quiet period.
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	replaced := false
	for i := range b.events {
		if b.events[i].Path == event.Path {
			b.events[i] = event
			replaced = true
			break
		}
	}
	if !replaced {
		b.events = append(b.events, event)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

func (b *BatchDebouncer) flush() {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.timer = nil
	if b.stopped || len(events) == 0 || b.emit == nil {
		b.mu.Unlock()
		return
	}
	b.emitting.Add(1)
	b.mu.Unlock()

	defer b.emitting.Done()
	b.emit(events)
}

// Flush emits pending events immediately.
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	b.flush()
}

// Stop drops pending events and waits for a batch already being emitted.
// Later Adds are ignored. It must not be called from emit.
func (b *BatchDebouncer) Stop() {
	b.mu.Lock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.events = nil
	b.mu.Unlock()

	b.emitting.Wait()
}

// Pending returns the number of queued events.
func (b *BatchDebouncer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
