package freemium

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager owns one Gate per viewer. Gates are created lazily on first touch
// and torn down together on shutdown, which guarantees every pending tick
// timer is released.
type Manager struct {
	cfg    Config
	store  SessionStore
	loc    *time.Location
	logger *zap.Logger

	mu    sync.Mutex
	gates map[string]*Gate
}

// NewManager creates a gate manager. loc is the zone for the daily reset
// boundary; nil means UTC.
func NewManager(cfg Config, store SessionStore, loc *time.Location, logger *zap.Logger) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		loc:    loc,
		logger: logger,
		gates:  make(map[string]*Gate),
	}
}

// Gate returns the viewer's gate, creating it on first access. isPro is fixed
// for the gate's lifetime; a plan change takes effect on the next session.
func (m *Manager) Gate(ctx context.Context, viewerID string, isPro bool) *Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gates[viewerID]; ok {
		return g
	}
	g := NewGate(ctx, m.cfg, m.store, viewerID, isPro, m.logger, WithLocation(m.loc))
	m.gates[viewerID] = g
	return g
}

// Release closes and removes a single viewer's gate (session teardown).
func (m *Manager) Release(viewerID string) {
	m.mu.Lock()
	g, ok := m.gates[viewerID]
	if ok {
		delete(m.gates, viewerID)
	}
	m.mu.Unlock()
	if ok {
		g.Close()
	}
}

// Close tears down every gate.
func (m *Manager) Close() {
	m.mu.Lock()
	gates := make([]*Gate, 0, len(m.gates))
	for _, g := range m.gates {
		gates = append(gates, g)
	}
	m.gates = make(map[string]*Gate)
	m.mu.Unlock()
	for _, g := range gates {
		g.Close()
	}
}
