package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/pulseboard/internal/database"
	"github.com/pulsemetrics/pulseboard/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func sampleSnapshot() engine.Snapshot {
	fired := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	prefs := engine.DefaultPreferences()
	prefs.Frequency = engine.FrequencyDaily
	prefs.Channels.Slack = true

	return engine.Snapshot{
		Notifications: []engine.Notification{
			{
				ID:        "n2",
				Type:      engine.TypeMention,
				Priority:  engine.PriorityHigh,
				Title:     "Mention spike",
				Message:   "14 brand mentions detected",
				Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
				Metadata:  map[string]any{"ruleId": "r1"},
				Channels:  []engine.Channel{engine.ChannelInApp, engine.ChannelEmail},
			},
			{
				ID:        "n1",
				Type:      engine.TypeInfo,
				Priority:  engine.PriorityLow,
				Title:     "Report ready",
				Message:   "Weekly visibility report generated",
				Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
				Read:      true,
			},
		},
		Preferences: prefs,
		Rules: []engine.Rule{
			{
				ID:            "r1",
				Name:          "Mention spike",
				Type:          engine.RuleMentionSpike,
				Conditions:    []engine.Condition{{Type: engine.ConditionMention, Threshold: 10}},
				Channels:      []engine.Channel{engine.ChannelInApp, engine.ChannelEmail},
				Active:        true,
				Cooldown:      time.Hour,
				LastTriggered: &fired,
			},
			{
				ID:         "r2",
				Name:       "Sentiment slide",
				Type:       engine.RuleSentimentDrop,
				Conditions: []engine.Condition{{Type: engine.ConditionSentimentDrop, Threshold: 0.4}},
				Active:     false,
			},
		},
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := openTestStore(t)
	snap := sampleSnapshot()

	require.NoError(t, store.SaveSnapshot("alice", snap))

	loaded, found, err := store.LoadSnapshot("alice")
	require.NoError(t, err)
	require.True(t, found)

	require.Equal(t, snap.Preferences, loaded.Preferences)

	require.Len(t, loaded.Notifications, 2)
	require.Equal(t, "n2", loaded.Notifications[0].ID, "load preserves newest-first order")
	require.Equal(t, engine.TypeMention, loaded.Notifications[0].Type)
	require.Equal(t, map[string]any{"ruleId": "r1"}, loaded.Notifications[0].Metadata)
	require.True(t, loaded.Notifications[1].Read)

	require.Len(t, loaded.Rules, 2)
	require.Equal(t, "r1", loaded.Rules[0].ID, "load preserves rule definition order")
	require.Equal(t, time.Hour, loaded.Rules[0].Cooldown)
	require.NotNil(t, loaded.Rules[0].LastTriggered)
	require.True(t, loaded.Rules[0].LastTriggered.Equal(*snap.Rules[0].LastTriggered))
}

func TestLoadSnapshotUnknownUser(t *testing.T) {
	store := openTestStore(t)

	_, found, err := store.LoadSnapshot("nobody")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveSnapshotReplacesPriorState(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveSnapshot("alice", sampleSnapshot()))

	trimmed := sampleSnapshot()
	trimmed.Notifications = trimmed.Notifications[:1]
	trimmed.Rules = nil
	trimmed.Preferences.Frequency = engine.FrequencyRealtime
	require.NoError(t, store.SaveSnapshot("alice", trimmed))

	loaded, found, err := store.LoadSnapshot("alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded.Notifications, 1)
	require.Empty(t, loaded.Rules)
	require.Equal(t, engine.FrequencyRealtime, loaded.Preferences.Frequency)
}

func TestSnapshotsIsolatedPerUser(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveSnapshot("alice", sampleSnapshot()))

	empty := engine.Snapshot{Preferences: engine.DefaultPreferences()}
	require.NoError(t, store.SaveSnapshot("bob", empty))

	loaded, found, err := store.LoadSnapshot("bob")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, loaded.Notifications)
	require.Empty(t, loaded.Rules)
}

func TestDeleteUser(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveSnapshot("alice", sampleSnapshot()))
	require.NoError(t, store.DeleteUser("alice"))

	_, found, err := store.LoadSnapshot("alice")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPersisterSavesOnChange(t *testing.T) {
	store := openTestStore(t)
	svc := engine.NewService()
	defer svc.Close()

	unsubscribe := svc.Subscribe(NewPersister("alice", svc, store, nil))
	defer unsubscribe()

	stored, err := svc.Trigger(context.Background(), engine.Notification{
		Type:    engine.TypeInfo,
		Title:   "hello",
		Message: "body",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		loaded, found, err := store.LoadSnapshot("alice")
		if err != nil || !found {
			return false
		}
		return len(loaded.Notifications) == 1 && loaded.Notifications[0].ID == stored.ID
	}, 2*time.Second, 10*time.Millisecond)
}

var _ engine.Observer = (*Persister)(nil)
