package storage

import (
	"go.uber.org/zap"

	"github.com/pulsemetrics/pulseboard/internal/engine"
)

// Persister bridges one engine's change signals to the snapshot store.
// Change signals are already coalesced per observer, so each invocation
// snapshots and writes the current state synchronously; a burst of
// mutations collapses into at most one save per delivery.
type Persister struct {
	userID string
	svc    *engine.Service
	store  *Store
	log    *zap.Logger
}

// NewPersister builds the observer for one user's feed. Attach it with
// svc.Subscribe(p).
func NewPersister(userID string, svc *engine.Service, store *Store, log *zap.Logger) *Persister {
	if log == nil {
		log = zap.NewNop()
	}
	return &Persister{userID: userID, svc: svc, store: store, log: log}
}

// OnChanged implements engine.Observer.
func (p *Persister) OnChanged() {
	if err := p.store.SaveSnapshot(p.userID, p.svc.Snapshot()); err != nil {
		p.log.Error("snapshot save failed",
			zap.String("user_id", p.userID),
			zap.Error(err),
		)
	}
}
