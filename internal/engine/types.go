package engine

import "time"

// Type enumerates the closed set of notification types.
type Type string

const (
	TypeSuccess    Type = "success"
	TypeWarning    Type = "warning"
	TypeError      Type = "error"
	TypeInfo       Type = "info"
	TypeMention    Type = "mention"
	TypeCompetitor Type = "competitor"
	TypeAlert      Type = "alert"
	TypeReport     Type = "report"
)

// Valid reports whether the type belongs to the closed set.
func (t Type) Valid() bool {
	switch t {
	case TypeSuccess, TypeWarning, TypeError, TypeInfo, TypeMention, TypeCompetitor, TypeAlert, TypeReport:
		return true
	}
	return false
}

// Priority orders notifications for statistics and suppression decisions.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the total-order position of the priority (critical > high > medium > low).
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Valid reports whether the priority is a known level.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Escalate bumps the priority one level, capped at critical.
func (p Priority) Escalate() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	case PriorityHigh, PriorityCritical:
		return PriorityCritical
	}
	return p
}

// Channel is a delivery surface for a notification.
type Channel string

const (
	ChannelInApp Channel = "inapp"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSlack Channel = "slack"
)

// Valid reports whether the channel is a known surface.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSlack:
		return true
	}
	return false
}

// External reports whether delivery leaves the process (everything but in-app).
func (c Channel) External() bool {
	return c.Valid() && c != ChannelInApp
}

// Category is the coarse grouping of notification types used for preference gating.
type Category string

const (
	CategoryMentions    Category = "mentions"
	CategoryCompetitors Category = "competitors"
	CategoryAlerts      Category = "alerts"
	CategoryReports     Category = "reports"
	CategorySentiment   Category = "sentiment"
	CategoryGeneral     Category = "general"
)

// CategoryOf maps a notification type onto its preference category.
// success/warning/info fall into the general bucket, which is not
// independently toggleable; error events count as alerts.
func CategoryOf(t Type) Category {
	switch t {
	case TypeMention:
		return CategoryMentions
	case TypeCompetitor:
		return CategoryCompetitors
	case TypeAlert, TypeError:
		return CategoryAlerts
	case TypeReport:
		return CategoryReports
	default:
		return CategoryGeneral
	}
}

// Notification is a single entry in the user's notification feed.
type Notification struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Priority    Priority       `json:"priority"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	Read        bool           `json:"read"`
	ActionURL   string         `json:"actionUrl,omitempty"`
	ActionLabel string         `json:"actionLabel,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Channels    []Channel      `json:"channels"`
}

// Clone returns a deep copy so callers can never alias store-internal state.
func (n Notification) Clone() Notification {
	cpy := n
	if n.Metadata != nil {
		cpy.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			cpy.Metadata[k] = v
		}
	}
	if n.Channels != nil {
		cpy.Channels = append([]Channel(nil), n.Channels...)
	}
	return cpy
}

// MetricSample is a single observation emitted by the external metrics source.
type MetricSample struct {
	Platform             string    `json:"platform"`
	BrandMentioned       bool      `json:"brandMentioned"`
	Sentiment            float64   `json:"sentiment"`
	CompetitorsMentioned []string  `json:"competitorsMentioned,omitempty"`
	PositionDelta        int       `json:"positionDelta,omitempty"`
	CitationCount        int       `json:"citationCount,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}
