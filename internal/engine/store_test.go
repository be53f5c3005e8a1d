package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
)

type countingPublisher struct {
	count atomic.Int64
}

func (p *countingPublisher) Publish() { p.count.Add(1) }

func (p *countingPublisher) Count() int64 { return p.count.Load() }

func sampleCandidate(title string) Notification {
	return Notification{
		Type:     TypeMention,
		Priority: PriorityHigh,
		Title:    title,
		Message:  "brand mentioned on perplexity",
		Channels: []Channel{ChannelInApp, ChannelEmail},
		Metadata: map[string]any{"platform": "perplexity"},
	}
}

func TestStoreCreateAssignsIdentityAndOrder(t *testing.T) {
	store := NewStore(nil)

	first, err := store.Create(sampleCandidate("first"))
	require.NoError(t, err)
	second, err := store.Create(sampleCandidate("second"))
	require.NoError(t, err)
	third, err := store.Create(sampleCandidate("third"))
	require.NoError(t, err)

	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.False(t, first.Read)

	items := store.List(Filter{})
	require.Len(t, items, 3)
	require.Equal(t, "third", items[0].Title)
	require.Equal(t, "second", items[1].Title)
	require.Equal(t, "first", items[2].Title)
	require.False(t, items[0].Timestamp.Before(items[1].Timestamp))
	require.False(t, items[1].Timestamp.Before(items[2].Timestamp))
	_ = third
}

func TestStoreTimestampsMonotonicWithBackwardsClock(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC), // clock stepped back
		time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	}
	idx := 0
	store := NewStore(nil, WithStoreClock(func() time.Time {
		t := times[idx]
		idx++
		return t
	}))

	for i := 0; i < 3; i++ {
		_, err := store.Create(sampleCandidate(fmt.Sprintf("n%d", i)))
		require.NoError(t, err)
	}

	items := store.List(Filter{})
	require.Len(t, items, 3)
	// Newest-first snapshot must never show a decreasing sequence reading
	// from oldest to newest.
	require.False(t, items[1].Timestamp.Before(items[2].Timestamp))
	require.False(t, items[0].Timestamp.Before(items[1].Timestamp))
}

func TestStoreCreateValidatesCandidate(t *testing.T) {
	store := NewStore(nil)

	_, err := store.Create(Notification{Type: TypeInfo, Title: "", Message: "x"})
	require.True(t, apperrors.IsValidation(err))

	_, err = store.Create(Notification{Type: "bogus", Title: "t", Message: "m"})
	require.True(t, apperrors.IsValidation(err))

	stored, err := store.Create(Notification{Type: TypeInfo, Title: "t", Message: "m"})
	require.NoError(t, err)
	require.Equal(t, PriorityMedium, stored.Priority)
}

func TestStoreMarkReadIsIdempotentAndMonotonic(t *testing.T) {
	pub := &countingPublisher{}
	store := NewStore(pub)

	n, err := store.Create(sampleCandidate("a"))
	require.NoError(t, err)
	base := pub.Count()

	require.True(t, store.MarkRead(n.ID))
	require.Equal(t, base+1, pub.Count())

	// Second call is a silent no-op with no broadcast.
	require.False(t, store.MarkRead(n.ID))
	require.Equal(t, base+1, pub.Count())

	// Absent id is a silent no-op.
	require.False(t, store.MarkRead("missing"))
	require.Equal(t, base+1, pub.Count())

	got, err := store.Get(n.ID)
	require.NoError(t, err)
	require.True(t, got.Read)
}

func TestStoreOnlyReadFlagMutates(t *testing.T) {
	store := NewStore(nil)

	created, err := store.Create(sampleCandidate("immutable"))
	require.NoError(t, err)

	store.MarkRead(created.ID)

	after, err := store.Get(created.ID)
	require.NoError(t, err)
	require.True(t, after.Read)

	// Every other field is byte-for-byte what creation returned.
	after.Read = created.Read
	require.Equal(t, created, after)
}

func TestStoreMarkAllReadBroadcastsOnce(t *testing.T) {
	pub := &countingPublisher{}
	store := NewStore(pub)

	for i := 0; i < 5; i++ {
		_, err := store.Create(sampleCandidate(fmt.Sprintf("n%d", i)))
		require.NoError(t, err)
	}
	base := pub.Count()

	require.Equal(t, 5, store.MarkAllRead())
	require.Equal(t, base+1, pub.Count(), "bulk mark-read must broadcast exactly once")

	// Nothing left unread, so no further broadcast.
	require.Equal(t, 0, store.MarkAllRead())
	require.Equal(t, base+1, pub.Count())
	require.Equal(t, 0, store.UnreadCount())
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	pub := &countingPublisher{}
	store := NewStore(pub)

	n, err := store.Create(sampleCandidate("a"))
	require.NoError(t, err)
	base := pub.Count()

	require.True(t, store.Delete(n.ID))
	require.Equal(t, base+1, pub.Count())

	require.False(t, store.Delete(n.ID))
	require.Equal(t, base+1, pub.Count())

	_, err = store.Get(n.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreListFilters(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(nil, WithStoreClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	mention := sampleCandidate("mention")
	_, err := store.Create(mention)
	require.NoError(t, err)

	alert := sampleCandidate("alert")
	alert.Type = TypeAlert
	alert.Priority = PriorityCritical
	created, err := store.Create(alert)
	require.NoError(t, err)

	report := sampleCandidate("report")
	report.Type = TypeReport
	report.Priority = PriorityLow
	_, err = store.Create(report)
	require.NoError(t, err)

	store.MarkRead(created.ID)

	byType := store.List(Filter{Types: []Type{TypeAlert}})
	require.Len(t, byType, 1)
	require.Equal(t, "alert", byType[0].Title)

	byPriority := store.List(Filter{Priorities: []Priority{PriorityCritical, PriorityLow}})
	require.Len(t, byPriority, 2)

	unread := false
	read := store.List(Filter{Read: &unread})
	require.Len(t, read, 2)

	since := store.List(Filter{Since: time.Date(2025, 6, 1, 10, 2, 30, 0, time.UTC)})
	require.Len(t, since, 1)
	require.Equal(t, "report", since[0].Title)

	limited := store.List(Filter{Limit: 2})
	require.Len(t, limited, 2)
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewStore(nil)
	created, err := store.Create(sampleCandidate("isolated"))
	require.NoError(t, err)

	items := store.List(Filter{})
	items[0].Title = "mutated"
	items[0].Metadata["platform"] = "tampered"
	items[0].Channels[0] = ChannelSlack

	fresh, err := store.Get(created.ID)
	require.NoError(t, err)
	require.Equal(t, "isolated", fresh.Title)
	require.Equal(t, "perplexity", fresh.Metadata["platform"])
	require.Equal(t, ChannelInApp, fresh.Channels[0])
}

func TestStoreCloseRejectsCreates(t *testing.T) {
	store := NewStore(nil)
	store.Close()

	_, err := store.Create(sampleCandidate("late"))
	require.ErrorIs(t, err, apperrors.ErrStoreClosed)
}

func TestStoreConcurrentMutationsStayConsistent(t *testing.T) {
	store := NewStore(&countingPublisher{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := store.Create(sampleCandidate(fmt.Sprintf("w%d-%d", i, j)))
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			store.MarkAllRead()
		}
	}()
	wg.Wait()

	store.MarkAllRead()
	require.Equal(t, 200, store.Len())
	require.Equal(t, 0, store.UnreadCount())
}
