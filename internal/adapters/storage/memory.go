package storage

import (
	"context"
	"sync"

	"github.com/okian/stripe-connect/pkg/metrics"
)

// Memory is an in-process Backend. Data is lost on restart.
type Memory struct {
	mu     sync.RWMutex
	prefix string
	values map[string]string
	lists  map[string]*list
	seq    uint64
}

var _ Backend = (*Memory)(nil)

// NewMemory constructs an empty in-memory backend.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		prefix: o.prefix,
		values: make(map[string]string),
		lists:  make(map[string]*list),
	}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	v, ok := m.values[m.prefix+key]
	m.mu.RUnlock()
	if !ok {
		metrics.RecordStorageOp("get", "miss")
		return "", ErrNotFound
	}
	metrics.RecordStorageOp("get", "hit")
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.values[m.prefix+key] = value
	m.mu.Unlock()
	metrics.RecordStorageOp("set", "ok")
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, m.prefix+key)
	m.mu.Unlock()
	metrics.RecordStorageOp("delete", "ok")
	return nil
}

func (m *Memory) Add(ctx context.Context, path, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[m.prefix+path]
	if !ok {
		l = newList()
		m.lists[m.prefix+path] = l
	}
	m.seq++
	l.add(id, m.seq)
	metrics.RecordStorageOp("list_add", "ok")
	return nil
}

func (m *Memory) Remove(ctx context.Context, path, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[m.prefix+path]
	if !ok {
		return nil
	}
	l.remove(id)
	if len(l.seqs) == 0 {
		delete(m.lists, m.prefix+path)
	}
	metrics.RecordStorageOp("list_remove", "ok")
	return nil
}

func (m *Memory) Exists(ctx context.Context, path, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lists[m.prefix+path]
	if !ok {
		return false, nil
	}
	_, ok = l.seqs[id]
	return ok, nil
}

func (m *Memory) Count(ctx context.Context, path string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lists[m.prefix+path]
	if !ok {
		return 0, nil
	}
	return len(l.seqs), nil
}

func (m *Memory) List(ctx context.Context, path string, offset, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metrics.RecordStorageOp("list_range", "ok")
	l, ok := m.lists[m.prefix+path]
	if !ok {
		return []string{}, nil
	}
	return l.window(offset, limit), nil
}

func (m *Memory) ListAll(ctx context.Context, path string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metrics.RecordStorageOp("list_range", "ok")
	l, ok := m.lists[m.prefix+path]
	if !ok {
		return []string{}, nil
	}
	return l.window(0, len(l.seqs)), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
