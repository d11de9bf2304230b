package store

import (
	"context"
	"sync"
)

// Memory keeps records in process. Saving an id twice keeps the first copy.
type Memory struct {
	mu      sync.Mutex
	records []Record
	ids     map[string]struct{}
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

func (m *Memory) SaveMessage(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	if _, ok := m.ids[r.ID]; ok {
		return nil
	}
	m.ids[r.ID] = struct{}{}
	m.records = append(m.records, r)
	return nil
}

func (m *Memory) FetchLatest(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	out := latest(m.records, limit)
	return append([]Record(nil), out...), nil
}

func (m *Memory) Health(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && ctx.Err() == nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
