// Package memory is an in-process WireStore. It backs the "memory" store
// backend and the service tests; all operations are serialized by one mutex,
// so every operation is atomic.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/zlnvch/wire/store"
)

type MemoryWireStore struct {
	mu       sync.Mutex
	strings  map[string]string
	counters map[string]int64
	lists    map[string][]string
	hashes   map[string]map[string]int64
	lexSets  map[string]map[string]struct{}
	closed   bool
}

func NewMemoryWireStore() *MemoryWireStore {
	return &MemoryWireStore{
		strings:  make(map[string]string),
		counters: make(map[string]int64),
		lists:    make(map[string][]string),
		hashes:   make(map[string]map[string]int64),
		lexSets:  make(map[string]map[string]struct{}),
	}
}

func (m *MemoryWireStore) check(ctx context.Context) error {
	if m.closed {
		return store.ErrUnavailable
	}
	return ctx.Err()
}

func (m *MemoryWireStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return "", err
	}
	v, ok := m.strings[key]
	if !ok {
		return "", store.ErrItemNotFound
	}
	return v, nil
}

func (m *MemoryWireStore) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.strings[key] = value
	return nil
}

func (m *MemoryWireStore) SetNX(ctx context.Context, key string, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return false, err
	}
	if _, ok := m.strings[key]; ok {
		return false, nil
	}
	m.strings[key] = value
	return true, nil
}

func (m *MemoryWireStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return false, err
	}
	_, s := m.strings[key]
	_, c := m.counters[key]
	_, l := m.lists[key]
	_, h := m.hashes[key]
	_, z := m.lexSets[key]
	return s || c || l || h || z, nil
}

func (m *MemoryWireStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	for _, key := range keys {
		delete(m.strings, key)
		delete(m.counters, key)
		delete(m.lists, key)
		delete(m.hashes, key)
		delete(m.lexSets, key)
	}
	return nil
}

func (m *MemoryWireStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *MemoryWireStore) ListRange(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(m.lists[key]), nil
}

func (m *MemoryWireStore) ListPush(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *MemoryWireStore) ListPushHead(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *MemoryWireStore) ListPushUnique(ctx context.Context, key string, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return false, err
	}
	if slices.Contains(m.lists[key], value) {
		return false, nil
	}
	m.lists[key] = append(m.lists[key], value)
	return true, nil
}

func (m *MemoryWireStore) ListRemove(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	list := slices.DeleteFunc(m.lists[key], func(v string) bool { return v == value })
	if len(list) == 0 {
		delete(m.lists, key)
		return nil
	}
	m.lists[key] = list
	return nil
}

func (m *MemoryWireStore) HashIncr(ctx context.Context, key string, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	h := m.hash(key)
	h[field] += delta
	return h[field], nil
}

func (m *MemoryWireStore) HashSet(ctx context.Context, key string, field string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.hash(key)[field] = value
	return nil
}

func (m *MemoryWireStore) HashGetAll(ctx context.Context, key string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *MemoryWireStore) HashDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	h, ok := m.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(m.hashes, key)
	}
	return nil
}

func (m *MemoryWireStore) hash(key string) map[string]int64 {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]int64)
		m.hashes[key] = h
	}
	return h
}

func (m *MemoryWireStore) LexAdd(ctx context.Context, key string, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return false, err
	}
	set, ok := m.lexSets[key]
	if !ok {
		set = make(map[string]struct{})
		m.lexSets[key] = set
	}
	if _, exists := set[member]; exists {
		return false, nil
	}
	set[member] = struct{}{}
	return true, nil
}

func (m *MemoryWireStore) LexRemove(ctx context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	if set, ok := m.lexSets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(m.lexSets, key)
		}
	}
	return nil
}

func (m *MemoryWireStore) LexRangePrefix(ctx context.Context, key string, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(m.lexSets[key]))
	for member := range m.lexSets[key] {
		if strings.HasPrefix(member, prefix) {
			members = append(members, member)
		}
	}
	// Go string comparison is byte order, same as ZRANGEBYLEX
	sort.Strings(members)
	return members, nil
}

func (m *MemoryWireStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(ctx)
}

// Close makes every later call fail with store.ErrUnavailable.
func (m *MemoryWireStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
