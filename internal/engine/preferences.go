package engine

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
)

// Frequency governs delivery timing for external channels. In-app storage is
// always immediate regardless of frequency.
type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// Valid reports whether the frequency is a known setting.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyRealtime, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// ChannelSettings maps each delivery surface to an enabled flag.
type ChannelSettings struct {
	InApp bool `json:"inapp"`
	Email bool `json:"email"`
	Push  bool `json:"push"`
	Slack bool `json:"slack"`
}

// CategorySettings maps each preference category to an enabled flag.
// The sentiment toggle is stored for settings-page parity; no notification
// type maps onto it, so it gates nothing in this engine.
type CategorySettings struct {
	Mentions    bool `json:"mentions"`
	Competitors bool `json:"competitors"`
	Alerts      bool `json:"alerts"`
	Reports     bool `json:"reports"`
	Sentiment   bool `json:"sentiment"`
}

// QuietHours configures a suppression window. End before start means the
// window wraps through midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // "HH:MM"
	End     string `json:"end"`   // "HH:MM"
}

// Preferences is the per-user notification preference set.
type Preferences struct {
	Channels   ChannelSettings  `json:"channels"`
	Categories CategorySettings `json:"categories"`
	QuietHours QuietHours       `json:"quietHours"`
	Frequency  Frequency        `json:"frequency"`
}

// DefaultPreferences returns the canonical defaults applied to new users.
func DefaultPreferences() Preferences {
	return Preferences{
		Channels: ChannelSettings{
			InApp: true,
			Email: true,
			Push:  false,
			Slack: false,
		},
		Categories: CategorySettings{
			Mentions:    true,
			Competitors: true,
			Alerts:      true,
			Reports:     true,
			Sentiment:   true,
		},
		QuietHours: QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
		Frequency: FrequencyRealtime,
	}
}

// ChannelEnabled reports whether the user enabled the given channel.
func (p Preferences) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelInApp:
		return p.Channels.InApp
	case ChannelEmail:
		return p.Channels.Email
	case ChannelPush:
		return p.Channels.Push
	case ChannelSlack:
		return p.Channels.Slack
	}
	return false
}

// CategoryEnabled reports whether the category gate is open. The general
// bucket is not toggleable and always passes.
func (p Preferences) CategoryEnabled(c Category) bool {
	switch c {
	case CategoryMentions:
		return p.Categories.Mentions
	case CategoryCompetitors:
		return p.Categories.Competitors
	case CategoryAlerts:
		return p.Categories.Alerts
	case CategoryReports:
		return p.Categories.Reports
	case CategorySentiment:
		return p.Categories.Sentiment
	default:
		return true
	}
}

// QuietHoursActive reports whether the supplied instant falls inside the
// configured window. Invalid stored times fail open (window inactive); the
// update path rejects them before they can be stored.
func (p Preferences) QuietHoursActive(now time.Time) bool {
	if !p.QuietHours.Enabled {
		return false
	}

	start, err := parseClock(p.QuietHours.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(p.QuietHours.End)
	if err != nil {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	// Overnight span, e.g. 22:00 -> 08:00.
	return minute >= start || minute < end
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ChannelPatch is a partial update of channel flags.
type ChannelPatch struct {
	InApp *bool `json:"inapp,omitempty"`
	Email *bool `json:"email,omitempty"`
	Push  *bool `json:"push,omitempty"`
	Slack *bool `json:"slack,omitempty"`
}

// CategoryPatch is a partial update of category flags.
type CategoryPatch struct {
	Mentions    *bool `json:"mentions,omitempty"`
	Competitors *bool `json:"competitors,omitempty"`
	Alerts      *bool `json:"alerts,omitempty"`
	Reports     *bool `json:"reports,omitempty"`
	Sentiment   *bool `json:"sentiment,omitempty"`
}

// QuietHoursPatch is a partial update of the quiet-hours window.
type QuietHoursPatch struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Start   *string `json:"start,omitempty"`
	End     *string `json:"end,omitempty"`
}

// PreferencesPatch deep-merges into the current preferences: nested keys
// update independently and unspecified keys are untouched.
type PreferencesPatch struct {
	Channels   *ChannelPatch    `json:"channels,omitempty"`
	Categories *CategoryPatch   `json:"categories,omitempty"`
	QuietHours *QuietHoursPatch `json:"quietHours,omitempty"`
	Frequency  *Frequency       `json:"frequency,omitempty"`
}

// PreferenceStore owns the singleton preference set for one user feed.
type PreferenceStore struct {
	mu      sync.RWMutex
	current Preferences
}

// NewPreferenceStore seeds the store with the supplied preferences.
func NewPreferenceStore(initial Preferences) *PreferenceStore {
	return &PreferenceStore{current: initial}
}

// Get returns the current preference set.
func (s *PreferenceStore) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies the patch atomically. A failed validation leaves the prior
// preferences intact; there is no partial application.
func (s *PreferenceStore) Update(patch PreferencesPatch) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current
	applyPatch(&merged, patch)

	if err := validatePreferences(merged); err != nil {
		return s.current, err
	}

	s.current = merged
	return merged, nil
}

// Set replaces the full preference set, used when restoring a snapshot.
func (s *PreferenceStore) Set(prefs Preferences) error {
	if err := validatePreferences(prefs); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = prefs
	s.mu.Unlock()
	return nil
}

func applyPatch(target *Preferences, patch PreferencesPatch) {
	if patch.Channels != nil {
		applyBool(&target.Channels.InApp, patch.Channels.InApp)
		applyBool(&target.Channels.Email, patch.Channels.Email)
		applyBool(&target.Channels.Push, patch.Channels.Push)
		applyBool(&target.Channels.Slack, patch.Channels.Slack)
	}
	if patch.Categories != nil {
		applyBool(&target.Categories.Mentions, patch.Categories.Mentions)
		applyBool(&target.Categories.Competitors, patch.Categories.Competitors)
		applyBool(&target.Categories.Alerts, patch.Categories.Alerts)
		applyBool(&target.Categories.Reports, patch.Categories.Reports)
		applyBool(&target.Categories.Sentiment, patch.Categories.Sentiment)
	}
	if patch.QuietHours != nil {
		applyBool(&target.QuietHours.Enabled, patch.QuietHours.Enabled)
		if patch.QuietHours.Start != nil {
			target.QuietHours.Start = *patch.QuietHours.Start
		}
		if patch.QuietHours.End != nil {
			target.QuietHours.End = *patch.QuietHours.End
		}
	}
	if patch.Frequency != nil {
		target.Frequency = *patch.Frequency
	}
}

func applyBool(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

func validatePreferences(prefs Preferences) error {
	if !prefs.Frequency.Valid() {
		return apperrors.NewValidation(fmt.Sprintf("unknown frequency %q", prefs.Frequency))
	}
	if _, err := parseClock(prefs.QuietHours.Start); err != nil {
		return apperrors.NewValidation("quiet hours start: " + err.Error())
	}
	if _, err := parseClock(prefs.QuietHours.End); err != nil {
		return apperrors.NewValidation("quiet hours end: " + err.Error())
	}
	return nil
}
