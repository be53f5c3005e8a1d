package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	var first, second atomic.Int64
	b.Subscribe(ObserverFunc(func() { first.Add(1) }))
	b.Subscribe(ObserverFunc(func() { second.Add(1) }))
	require.Equal(t, 2, b.Len())

	b.Publish()

	waitFor(t, func() bool { return first.Load() >= 1 }, "first observer never notified")
	waitFor(t, func() bool { return second.Load() >= 1 }, "second observer never notified")
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	var calls atomic.Int64
	unsubscribe := b.Subscribe(ObserverFunc(func() { calls.Add(1) }))

	b.Publish()
	waitFor(t, func() bool { return calls.Load() == 1 }, "observer never notified")

	unsubscribe()
	unsubscribe() // second call is harmless
	require.Equal(t, 0, b.Len())

	b.Publish()
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 1, calls.Load())
}

func TestBroadcasterSlowObserverDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	gate := make(chan struct{})
	var calls atomic.Int64
	b.Subscribe(ObserverFunc(func() {
		calls.Add(1)
		<-gate
	}))

	// The observer is stuck after the first signal; publishing must still
	// return immediately and pending signals coalesce.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow observer")
	}

	close(gate)
	waitFor(t, func() bool { return calls.Load() >= 2 }, "coalesced signal never delivered")
}

func TestBroadcasterObserverSeesSignalAfterEachCommit(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	var calls atomic.Int64
	b.Subscribe(ObserverFunc(func() { calls.Add(1) }))

	for i := 0; i < 3; i++ {
		b.Publish()
		waitFor(t, func() bool { return calls.Load() >= int64(i+1) }, "signal lost")
	}
}

func TestBroadcasterCloseTearsDownSubscribers(t *testing.T) {
	b := NewBroadcaster()

	var calls atomic.Int64
	b.Subscribe(ObserverFunc(func() { calls.Add(1) }))
	b.Close()
	require.Equal(t, 0, b.Len())

	b.Publish()
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 0, calls.Load())

	// Subscribing after close is inert.
	unsubscribe := b.Subscribe(ObserverFunc(func() { calls.Add(1) }))
	unsubscribe()
	require.Equal(t, 0, b.Len())
}
