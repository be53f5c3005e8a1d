package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pulsemetrics/pulseboard/pkg/metrics"
)

// Snapshot is the serializable durable shape of one feed.
type Snapshot struct {
	Notifications []Notification `json:"notifications"`
	Preferences   Preferences    `json:"preferences"`
	Rules         []Rule         `json:"rules"`
}

// Service is the notification engine for a single feed: it ingests metric
// samples, evaluates alert rules, routes candidates to channel adapters,
// owns the notification log and preference set, and broadcasts every
// committed change to subscribed observers. Instances are independent, so
// one can be constructed per user or tenant.
type Service struct {
	store       *Store
	prefs       *PreferenceStore
	rules       *RuleSet
	broadcaster *Broadcaster
	evaluator   *Evaluator
	digest      *DigestQueue
	adapters    map[Channel]Adapter
	clock       func() time.Time
	log         *zap.Logger
	storeOpts   []StoreOption
	dispatches  sync.WaitGroup
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock injects the clock used for timestamps, quiet hours and
// cool-down checks. The engine never owns wall-clock timers.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger attaches a logger to the engine.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAdapters registers channel adapters. Channels without an adapter are
// routed but dropped with a warning at dispatch time.
func WithAdapters(adapters ...Adapter) ServiceOption {
	return func(s *Service) {
		for _, adapter := range adapters {
			if adapter != nil {
				s.adapters[adapter.Channel()] = adapter
			}
		}
	}
}

// WithPreferences seeds the initial preference set.
func WithPreferences(prefs Preferences) ServiceOption {
	return func(s *Service) {
		s.prefs = NewPreferenceStore(prefs)
	}
}

// WithNotificationIDs overrides notification id assignment, for tests.
func WithNotificationIDs(fn func() string) ServiceOption {
	return func(s *Service) {
		s.storeOpts = append(s.storeOpts, WithIDGenerator(fn))
	}
}

// NewService constructs an engine with defaults: wall clock, no-op logger,
// no adapters, default preferences, empty log and rule set.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		prefs:    NewPreferenceStore(DefaultPreferences()),
		rules:    NewRuleSet(),
		digest:   NewDigestQueue(),
		adapters: make(map[Channel]Adapter),
		clock:    time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.broadcaster = NewBroadcaster()
	storeOpts := append([]StoreOption{WithStoreClock(s.clock)}, s.storeOpts...)
	s.store = NewStore(s.broadcaster, storeOpts...)
	s.evaluator = NewEvaluator(s.clock, s.log)
	return s
}

// Subscribe registers an observer for change signals and returns its
// unsubscribe function. Observers re-query state; they receive no payload.
func (s *Service) Subscribe(o Observer) func() {
	return s.broadcaster.Subscribe(o)
}

// Ingest evaluates every active rule against the sample batch, records the
// fired candidates in the log and dispatches or defers external delivery
// per the current preferences. It is the external scheduler's entry point.
func (s *Service) Ingest(ctx context.Context, samples []MetricSample) []Notification {
	fired := s.rules.EvaluateAll(s.evaluator, samples)

	stored := make([]Notification, 0, len(fired))
	for _, candidate := range fired {
		n, err := s.admit(ctx, candidate)
		if err != nil {
			s.log.Warn("candidate rejected", zap.Error(err))
			continue
		}
		stored = append(stored, n)
	}
	return stored
}

// Trigger records an externally synthesized candidate, applying the same
// routing as rule-fired notifications.
func (s *Service) Trigger(ctx context.Context, candidate Notification) (Notification, error) {
	return s.admit(ctx, candidate)
}

// admit routes a candidate against the live preferences and commits it to
// the log. The in-app record is written regardless of category gating or
// adapter availability; only external dispatch is subject to routing.
func (s *Service) admit(ctx context.Context, candidate Notification) (Notification, error) {
	prefs := s.prefs.Get()
	now := s.clock().UTC()
	decision := Route(candidate, prefs, now)

	requested := append([]Channel(nil), candidate.Channels...)

	// Snapshot the channels this notification was actually routed to.
	snapshot := make([]Channel, 0, len(requested)+1)
	if prefs.Channels.InApp {
		snapshot = append(snapshot, ChannelInApp)
	}
	snapshot = append(snapshot, decision.Immediate...)
	snapshot = append(snapshot, decision.Deferred...)
	candidate.Channels = snapshot

	stored, err := s.store.Create(candidate)
	if err != nil {
		return Notification{}, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(stored.Type), string(stored.Priority)).Inc()

	if len(decision.Immediate) > 0 {
		s.dispatch(ctx, stored, decision.Immediate)
	}
	if len(decision.Deferred) > 0 {
		deferred := stored.Clone()
		deferred.Channels = requested
		s.digest.Enqueue(deferred, now)
		metrics.DigestDeferred.Inc()
	}
	return stored, nil
}

// dispatch hands the notification to each channel adapter asynchronously so
// a slow provider can never stall the store's writer.
func (s *Service) dispatch(ctx context.Context, n Notification, channels []Channel) {
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()

		var errs error
		for _, ch := range channels {
			adapter, ok := s.adapters[ch]
			if !ok {
				s.log.Warn("no adapter registered", zap.String("channel", string(ch)))
				continue
			}
			if err := adapter.Deliver(ctx, n); err != nil {
				metrics.ChannelDispatches.WithLabelValues(string(ch), "error").Inc()
				errs = multierr.Append(errs, err)
				continue
			}
			metrics.ChannelDispatches.WithLabelValues(string(ch), "ok").Inc()
		}
		if errs != nil {
			s.log.Error("channel delivery failed",
				zap.String("notification_id", n.ID),
				zap.Error(errs),
			)
		}
	}()
}

// FlushDigests delivers every deferred notification whose delivery is
// admissible under the preferences as they stand now, not as they stood at
// deferral time. Entries still inside quiet hours go back on the queue;
// entries whose channels or category have since been disabled are dropped.
// An external scheduler owns the cadence.
func (s *Service) FlushDigests(ctx context.Context) int {
	entries := s.digest.Drain()
	if len(entries) == 0 {
		return 0
	}

	prefs := s.prefs.Get()
	// The flush itself is the digest tick, so frequency no longer defers.
	prefs.Frequency = FrequencyRealtime
	now := s.clock().UTC()

	flushed := 0
	var requeue []Notification
	for _, entry := range entries {
		decision := Route(entry, prefs, now)
		if len(decision.Immediate) > 0 {
			s.dispatch(ctx, entry, decision.Immediate)
			flushed++
			continue
		}
		if len(decision.Deferred) > 0 {
			requeue = append(requeue, entry)
		}
	}
	s.digest.Requeue(requeue, now)

	if flushed > 0 {
		s.log.Info("digest flushed",
			zap.Int("delivered", flushed),
			zap.Int("requeued", len(requeue)),
		)
	}
	return flushed
}

// PendingDigests returns the number of notifications awaiting a digest tick.
func (s *Service) PendingDigests() int {
	return s.digest.Pending()
}

// List returns a newest-first snapshot of the log.
func (s *Service) List(filter Filter) []Notification {
	return s.store.List(filter)
}

// Get returns a notification by id, surfacing ErrNotFound when absent.
func (s *Service) Get(id string) (Notification, error) {
	return s.store.Get(id)
}

// MarkRead flips a notification to read; idempotent.
func (s *Service) MarkRead(id string) {
	s.store.MarkRead(id)
}

// MarkAllRead flips every unread notification with a single change signal.
func (s *Service) MarkAllRead() int {
	return s.store.MarkAllRead()
}

// Delete hard-removes a notification; absent ids are no-ops.
func (s *Service) Delete(id string) {
	s.store.Delete(id)
}

// Statistics aggregates counts over the current log.
func (s *Service) Statistics() Statistics {
	return ComputeStatistics(s.store.List(Filter{}))
}

// UnreadCount is the fast path for badge rendering.
func (s *Service) UnreadCount() int {
	return s.store.UnreadCount()
}

// Preferences returns the current preference set.
func (s *Service) Preferences() Preferences {
	return s.prefs.Get()
}

// UpdatePreferences deep-merges the patch; a validation failure leaves the
// prior preferences intact and returns them alongside the error.
func (s *Service) UpdatePreferences(patch PreferencesPatch) (Preferences, error) {
	prefs, err := s.prefs.Update(patch)
	if err != nil {
		return prefs, err
	}
	s.broadcaster.Publish()
	return prefs, nil
}

// AddRule validates and registers an alert rule.
func (s *Service) AddRule(rule Rule) (Rule, error) {
	added, err := s.rules.Add(rule)
	if err != nil {
		return Rule{}, err
	}
	s.broadcaster.Publish()
	return added, nil
}

// UpdateRule replaces an existing rule definition.
func (s *Service) UpdateRule(rule Rule) (Rule, error) {
	updated, err := s.rules.Update(rule)
	if err != nil {
		return Rule{}, err
	}
	s.broadcaster.Publish()
	return updated, nil
}

// SetRuleActive toggles a rule between active and inactive.
func (s *Service) SetRuleActive(id string, active bool) (Rule, error) {
	rule, err := s.rules.SetActive(id, active)
	if err != nil {
		return Rule{}, err
	}
	s.broadcaster.Publish()
	return rule, nil
}

// RemoveRule deletes a rule; absent ids are no-ops.
func (s *Service) RemoveRule(id string) {
	if s.rules.Delete(id) {
		s.broadcaster.Publish()
	}
}

// ListRules returns all rules in insertion order.
func (s *Service) ListRules() []Rule {
	return s.rules.List()
}

// GetRule returns a rule by id.
func (s *Service) GetRule(id string) (Rule, error) {
	return s.rules.Get(id)
}

// Snapshot captures the serializable state of the feed.
func (s *Service) Snapshot() Snapshot {
	return Snapshot{
		Notifications: s.store.List(Filter{}),
		Preferences:   s.prefs.Get(),
		Rules:         s.rules.List(),
	}
}

// Restore replaces the feed state from a persisted snapshot.
func (s *Service) Restore(snap Snapshot) error {
	if err := s.prefs.Set(snap.Preferences); err != nil {
		return err
	}
	if err := s.rules.Load(snap.Rules); err != nil {
		return err
	}
	s.store.Load(snap.Notifications)
	return nil
}

// Reset clears the log. Reserved for test and reset tooling.
func (s *Service) Reset() {
	s.store.Reset()
}

// Close stops accepting new notifications, waits for in-flight channel
// dispatches and tears down observer goroutines.
func (s *Service) Close() {
	s.store.Close()
	s.dispatches.Wait()
	s.broadcaster.Close()
}
