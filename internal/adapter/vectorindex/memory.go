package vectorindex

import (
	"context"
	"errors"
	"sync"
)

// MemoryIndex is a brute-force in-process index. Contents are lost on restart.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	points    []Point
	positions map[string]int
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{positions: make(map[string]int)}
}

func (m *MemoryIndex) Name() string { return "memory" }

func (m *MemoryIndex) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = dimension
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if err := checkDimension(m.dimension, p.Vector); err != nil {
			return err
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		if pos, ok := m.positions[p.ID]; ok {
			m.points[pos] = p
			continue
		}
		m.positions[p.ID] = len(m.points)
		m.points = append(m.points, p)
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := checkDimension(m.dimension, vector); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(m.points))
	for _, p := range m.points {
		hits = append(hits, Hit{ID: p.ID, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	return topK(hits, k), nil
}

func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := m.points[:0]
	for _, p := range m.points {
		if _, ok := remove[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	m.points = kept
	m.positions = make(map[string]int, len(kept))
	for i, p := range kept {
		m.positions[p.ID] = i
	}
	return nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

func (m *MemoryIndex) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = nil
	m.positions = make(map[string]int)
	return nil
}

func (m *MemoryIndex) Close() error { return nil }
