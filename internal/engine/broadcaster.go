package engine

import "sync"

// Observer receives change signals from the notification store. Observers get
// no payload; they are expected to re-query the store and aggregator, which
// sidesteps stale-payload races from fast-arriving events.
type Observer interface {
	OnChanged()
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func()

// OnChanged invokes the wrapped function.
func (f ObserverFunc) OnChanged() { f() }

type subscriber struct {
	signal chan struct{}
	done   chan struct{}
}

// Broadcaster fans a payloadless "changed" signal out to any number of
// observers. Publishing never blocks: every subscriber owns a goroutine fed
// by a one-slot signal channel, so pending signals coalesce while a slow
// observer catches up and each observer still sees changes in commit order.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers an observer and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Broadcaster) Subscribe(o Observer) func() {
	sub := &subscriber{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-sub.signal:
				o.OnChanged()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish signals every subscriber that the store changed.
func (b *Broadcaster) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.signal <- struct{}{}:
		default:
			// Signal already pending; the observer will re-query anyway.
		}
	}
}

// Len returns the current number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close tears down all subscriber goroutines. Further subscriptions are inert.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.done)
		delete(b.subs, sub)
	}
}
