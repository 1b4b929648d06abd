package memory

import (
	"context"
	"sync"
)

// CartMirror keeps the remote cart copy in process. It backs local runs without Redis.
type CartMirror struct {
	mu    sync.RWMutex
	carts map[string]map[string]int
}

func NewCartMirror() *CartMirror {
	return &CartMirror{carts: make(map[string]map[string]int)}
}

func (m *CartMirror) UpsertLine(ctx context.Context, userID, productID string, quantity int) error {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()

	lines, ok := m.carts[userID]
	if !ok {
		lines = make(map[string]int)
		m.carts[userID] = lines
	}
	lines[productID] = quantity
	return nil
}

func (m *CartMirror) DeleteLine(ctx context.Context, userID, productID string) error {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()

	if lines, ok := m.carts[userID]; ok {
		delete(lines, productID)
		if len(lines) == 0 {
			delete(m.carts, userID)
		}
	}
	return nil
}

func (m *CartMirror) Clear(ctx context.Context, userID string) error {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

// Snapshot returns a copy of the mirrored lines for userID.
func (m *CartMirror) Snapshot(userID string) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.carts[userID]))
	for k, v := range m.carts[userID] {
		out[k] = v
	}
	return out
}
