package engine

import "sync"

// Manager hosts one independent engine per user feed, creating them lazily
// through the injected factory (which typically restores persisted state
// and wires persistence/realtime observers).
type Manager struct {
	mu      sync.Mutex
	engines map[string]*Service
	factory func(userID string) (*Service, error)
}

// NewManager constructs a manager around the engine factory.
func NewManager(factory func(userID string) (*Service, error)) *Manager {
	return &Manager{
		engines: make(map[string]*Service),
		factory: factory,
	}
}

// Get returns the engine for the user, creating it on first use.
func (m *Manager) Get(userID string) (*Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if svc, ok := m.engines[userID]; ok {
		return svc, nil
	}

	svc, err := m.factory(userID)
	if err != nil {
		return nil, err
	}
	m.engines[userID] = svc
	return svc, nil
}

// Each invokes fn for every hosted engine.
func (m *Manager) Each(fn func(userID string, svc *Service)) {
	m.mu.Lock()
	snapshot := make(map[string]*Service, len(m.engines))
	for id, svc := range m.engines {
		snapshot[id] = svc
	}
	m.mu.Unlock()

	for id, svc := range snapshot {
		fn(id, svc)
	}
}

// Close shuts down every hosted engine.
func (m *Manager) Close() {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]*Service)
	m.mu.Unlock()

	for _, svc := range engines {
		svc.Close()
	}
}
