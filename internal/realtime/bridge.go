package realtime

import (
	"github.com/pulsemetrics/pulseboard/internal/engine"
)

// FeedUpdate is pushed to a user's websocket clients whenever their feed
// changes. Clients holding richer views re-query the HTTP API; the push
// carries just enough to update badges without a round trip.
type FeedUpdate struct {
	Unread     int               `json:"unread"`
	Statistics engine.Statistics `json:"statistics"`
}

// Bridge forwards one engine's change signals to the hub as feed updates.
// Attach it with svc.Subscribe(b).
type Bridge struct {
	userID string
	svc    *engine.Service
	hub    *Hub
}

// NewBridge builds the observer for one user's feed.
func NewBridge(userID string, svc *engine.Service, hub *Hub) *Bridge {
	return &Bridge{userID: userID, svc: svc, hub: hub}
}

// OnChanged implements engine.Observer.
func (b *Bridge) OnChanged() {
	b.hub.BroadcastToUser(b.userID, Message{
		Event: "feed.changed",
		Data: FeedUpdate{
			Unread:     b.svc.UnreadCount(),
			Statistics: b.svc.Statistics(),
		},
	})
}

var _ engine.Observer = (*Bridge)(nil)
