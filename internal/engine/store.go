package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
)

// Filter selects notifications on the read path. Zero value matches everything.
type Filter struct {
	Types      []Type
	Priorities []Priority
	Read       *bool
	Since      time.Time
	Until      time.Time
	Limit      int
}

func (f Filter) matches(n Notification) bool {
	if len(f.Types) > 0 && !containsType(f.Types, n.Type) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, n.Priority) {
		return false
	}
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	if !f.Since.IsZero() && n.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && n.Timestamp.After(f.Until) {
		return false
	}
	return true
}

func containsType(list []Type, t Type) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

// changePublisher receives one signal per committed mutation.
type changePublisher interface {
	Publish()
}

// Store owns the ordered, mutable log of notifications. All mutations are
// serialised behind a single mutex so create, mark-read, delete and the bulk
// operations are linearizable with respect to each other; reads return deep
// copies and may run concurrently.
type Store struct {
	mu          sync.RWMutex
	items       []Notification // newest first
	lastStamp   time.Time
	closed      bool
	clock       func() time.Time
	newID       func() string
	broadcaster changePublisher
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the clock used for creation timestamps.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides identifier assignment, primarily for tests.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore constructs an empty store publishing change signals to the
// supplied broadcaster. A nil broadcaster disables signalling.
func NewStore(broadcaster changePublisher, opts ...StoreOption) *Store {
	s := &Store{
		clock:       time.Now,
		newID:       uuid.NewString,
		broadcaster: broadcaster,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) publish() {
	if s.broadcaster != nil {
		s.broadcaster.Publish()
	}
}

// Create assigns id and timestamp, prepends the record to the log and
// returns the stored copy. Timestamps are monotonically non-decreasing per
// store instance even if the wall clock steps backwards.
func (s *Store) Create(candidate Notification) (Notification, error) {
	if candidate.Title == "" || candidate.Message == "" {
		return Notification{}, apperrors.NewValidation("notification title and message are required")
	}
	if !candidate.Type.Valid() {
		return Notification{}, apperrors.NewValidation("unknown notification type")
	}
	if candidate.Priority == "" {
		candidate.Priority = PriorityMedium
	}
	if !candidate.Priority.Valid() {
		return Notification{}, apperrors.NewValidation("unknown notification priority")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Notification{}, apperrors.ErrStoreClosed
	}

	stored := candidate.Clone()
	stored.ID = s.newID()
	stored.Read = false

	now := s.clock().UTC()
	if now.Before(s.lastStamp) {
		now = s.lastStamp
	}
	s.lastStamp = now
	stored.Timestamp = now

	s.items = append([]Notification{stored}, s.items...)
	result := stored.Clone()
	s.mu.Unlock()

	s.publish()
	return result, nil
}

// MarkRead flips the read flag. Absent ids and already-read records are
// silent no-ops; a broadcast fires only when state actually changed.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].Read {
				s.items[i].Read = true
				changed = true
			}
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	return changed
}

// MarkAllRead flips every unread record and fires a single broadcast,
// never one per record.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	changed := 0
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed++
		}
	}
	s.mu.Unlock()

	if changed > 0 {
		s.publish()
	}
	return changed
}

// Delete hard-removes a record. Absent ids are silent no-ops.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.publish()
	}
	return removed
}

// Get returns a single record by id, surfacing ErrNotFound for absent ids.
func (s *Store) Get(id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.items {
		if s.items[i].ID == id {
			return s.items[i].Clone(), nil
		}
	}
	return Notification{}, apperrors.ErrNotFound
}

// List returns a newest-first snapshot matching the filter.
func (s *Store) List(filter Filter) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Notification, 0, len(s.items))
	for i := range s.items {
		if !filter.matches(s.items[i]) {
			continue
		}
		result = append(result, s.items[i].Clone())
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// Len returns the current log size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// UnreadCount returns the number of unread records.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := 0
	for i := range s.items {
		if !s.items[i].Read {
			unread++
		}
	}
	return unread
}

// Load replaces the log contents, preserving the supplied order and read
// flags. Used when restoring a persisted snapshot; read-flag monotonicity
// does not apply across restores.
func (s *Store) Load(items []Notification) {
	s.mu.Lock()
	s.items = make([]Notification, 0, len(items))
	for _, item := range items {
		s.items = append(s.items, item.Clone())
		if item.Timestamp.After(s.lastStamp) {
			s.lastStamp = item.Timestamp
		}
	}
	s.mu.Unlock()

	s.publish()
}

// Reset clears the log entirely. Reserved for test and reset tooling.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.publish()
}

// Close rejects further creates. Reads and idempotent mutations keep working
// so observers can drain state during shutdown.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
