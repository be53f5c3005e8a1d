package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
)

func boolPtr(v bool) *bool { return &v }

func stringPtr(v string) *string { return &v }

func TestPreferenceStoreDeepMerge(t *testing.T) {
	store := NewPreferenceStore(DefaultPreferences())

	updated, err := store.Update(PreferencesPatch{
		Channels: &ChannelPatch{Slack: boolPtr(true)},
	})
	require.NoError(t, err)

	// The patched key changed; sibling keys are untouched.
	require.True(t, updated.Channels.Slack)
	require.True(t, updated.Channels.InApp)
	require.True(t, updated.Channels.Email)
	require.Equal(t, DefaultPreferences().Categories, updated.Categories)
	require.Equal(t, DefaultPreferences().QuietHours, updated.QuietHours)

	updated, err = store.Update(PreferencesPatch{
		QuietHours: &QuietHoursPatch{Enabled: boolPtr(true), Start: stringPtr("23:30")},
	})
	require.NoError(t, err)
	require.True(t, updated.QuietHours.Enabled)
	require.Equal(t, "23:30", updated.QuietHours.Start)
	require.Equal(t, "08:00", updated.QuietHours.End, "unspecified nested key must survive")
	require.True(t, updated.Channels.Slack, "earlier update must survive")
}

func TestPreferenceStoreRejectsInvalidQuietHoursAtomically(t *testing.T) {
	store := NewPreferenceStore(DefaultPreferences())

	before := store.Get()
	_, err := store.Update(PreferencesPatch{
		Channels:   &ChannelPatch{Push: boolPtr(true)},
		QuietHours: &QuietHoursPatch{Start: stringPtr("25:00")},
	})
	require.Error(t, err)
	require.True(t, apperrors.IsValidation(err))

	// No partial application: the valid channel patch must not have landed.
	require.Equal(t, before, store.Get())
}

func TestPreferenceStoreRejectsUnknownFrequency(t *testing.T) {
	store := NewPreferenceStore(DefaultPreferences())

	bogus := Frequency("sometimes")
	_, err := store.Update(PreferencesPatch{Frequency: &bogus})
	require.True(t, apperrors.IsValidation(err))

	hourly := FrequencyHourly
	updated, err := store.Update(PreferencesPatch{Frequency: &hourly})
	require.NoError(t, err)
	require.Equal(t, FrequencyHourly, updated.Frequency)
}

func TestQuietHoursSameDayWindow(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.QuietHours = QuietHours{Enabled: true, Start: "09:00", End: "17:00"}

	require.True(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))
	require.False(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 8, 59, 0, 0, time.UTC)))
	require.False(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)))
}

func TestQuietHoursOvernightWraparound(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.QuietHours = QuietHours{Enabled: true, Start: "22:00", End: "08:00"}

	require.True(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC)))
	require.True(t, prefs.QuietHoursActive(time.Date(2025, 6, 3, 3, 0, 0, 0, time.UTC)))
	require.False(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))
	require.False(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)))
}

func TestQuietHoursDisabled(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.QuietHours = QuietHours{Enabled: false, Start: "00:00", End: "23:59"}
	require.False(t, prefs.QuietHoursActive(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))
}

func TestCategoryOfMapping(t *testing.T) {
	require.Equal(t, CategoryMentions, CategoryOf(TypeMention))
	require.Equal(t, CategoryCompetitors, CategoryOf(TypeCompetitor))
	require.Equal(t, CategoryAlerts, CategoryOf(TypeAlert))
	require.Equal(t, CategoryAlerts, CategoryOf(TypeError))
	require.Equal(t, CategoryReports, CategoryOf(TypeReport))
	require.Equal(t, CategoryGeneral, CategoryOf(TypeSuccess))
	require.Equal(t, CategoryGeneral, CategoryOf(TypeWarning))
	require.Equal(t, CategoryGeneral, CategoryOf(TypeInfo))
}

func TestCategoryGeneralIsNotToggleable(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.Categories = CategorySettings{} // everything off

	require.True(t, prefs.CategoryEnabled(CategoryGeneral))
	require.False(t, prefs.CategoryEnabled(CategoryMentions))
}
