package chunk

import (
	"context"
	"strings"
	"sync"

	"github.com/groundkit/groundkit/internal/db"
)

// memStore is an in-memory hash store implementing the consumer interface.
type memStore struct {
	mu   sync.Mutex
	rows map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]map[string]string)}
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		row = make(map[string]string)
		m.rows[key] = row
	}
	for k, v := range fields {
		row[k] = v
	}
	return nil
}

func (m *memStore) HSetNX(_ context.Context, key, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		row = make(map[string]string)
		m.rows[key] = row
	}
	if _, exists := row[field]; exists {
		return false, nil
	}
	row[field] = value
	return true, nil
}

func (m *memStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for _, item := range items {
		if err := m.HSet(ctx, item.Key, item.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for k, v := range m.rows[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.rows, key)
	}
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key := range m.rows {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}
