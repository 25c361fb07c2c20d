package throttle

import (
	"context"
	"sync"
)

// Observer receives admission events. Production wires this to metrics;
// tests record the calls.
type Observer interface {
	OnThrottle()
	OnHandled()
	OnQueueEnter(depth int)
	OnQueueLeave(depth int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnThrottle()      {}
func (NopObserver) OnHandled()       {}
func (NopObserver) OnQueueEnter(int) {}
func (NopObserver) OnQueueLeave(int) {}

// Throttle bounds concurrent request handling. Up to slots requests run at
// once; up to queue more wait FIFO for a slot. A request arriving with the
// queue full is rejected immediately.
type Throttle struct {
	slots chan struct{}
	obs   Observer

	mu       sync.Mutex
	queued   int
	maxQueue int
}

// New creates a throttle with the given slot and queue capacity.
func New(slots, queue int, obs Observer) *Throttle {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Throttle{
		slots:    make(chan struct{}, slots),
		maxQueue: queue,
		obs:      obs,
	}
}

// Acquire admits the request or returns false if both the slots and the
// queue are full. On success the returned release function must be called
// exactly once when the request completes. Acquire respects ctx while
// waiting in the queue.
func (t *Throttle) Acquire(ctx context.Context) (release func(), ok bool) {
	select {
	case t.slots <- struct{}{}:
		t.obs.OnHandled()
		return t.release, true
	default:
	}

	t.mu.Lock()
	if t.queued >= t.maxQueue {
		t.mu.Unlock()
		t.obs.OnThrottle()
		return nil, false
	}
	t.queued++
	depth := t.queued
	t.mu.Unlock()
	t.obs.OnQueueEnter(depth)

	defer func() {
		t.mu.Lock()
		t.queued--
		depth := t.queued
		t.mu.Unlock()
		t.obs.OnQueueLeave(depth)
	}()

	select {
	case t.slots <- struct{}{}:
		t.obs.OnHandled()
		return t.release, true
	case <-ctx.Done():
		t.obs.OnThrottle()
		return nil, false
	}
}

func (t *Throttle) release() {
	<-t.slots
}

// InUse reports the number of occupied slots.
func (t *Throttle) InUse() int {
	return len(t.slots)
}

// Queued reports the number of requests waiting for a slot.
func (t *Throttle) Queued() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queued
}
