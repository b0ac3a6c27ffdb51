package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/roach88/timelock/internal/contract"
)

// MemoryStore is an in-process Store. A single mutex serializes every
// operation, so each Update is atomic with respect to all others.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]contract.Contract
	order   []string
	events  map[string][]contract.Event
	seq     int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]contract.Contract),
		events:  make(map[string][]contract.Event),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.records[id]
	if !ok {
		return contract.Contract{}, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MemoryStore) Insert(ctx context.Context, id string, c contract.Contract, ev contract.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; ok {
		return ErrDuplicate
	}
	if err := checkRecord(c); err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}

	sealed, err := sealEvent(ev, id, m.seq+1)
	if err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}

	m.seq++
	m.records[id] = c.Clone()
	m.order = append(m.order, id)
	m.events[id] = append(m.events[id], sealed)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn Transition) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.records[id]
	if !ok {
		return contract.Contract{}, ErrNotFound
	}

	after := before.Clone()
	ev, err := fn(&after)
	if err != nil {
		return contract.Contract{}, err
	}
	if err := checkTransition(before, after); err != nil {
		return contract.Contract{}, fmt.Errorf("update %s: %w", id, err)
	}

	var sealed contract.Event
	if ev != nil {
		sealed, err = sealEvent(*ev, id, m.seq+1)
		if err != nil {
			return contract.Contract{}, fmt.Errorf("update %s: %w", id, err)
		}
	}

	if !reflect.DeepEqual(before, after) {
		m.records[id] = after.Clone()
	}
	if ev != nil {
		m.seq++
		m.events[id] = append(m.events[id], sealed)
	}
	return after, nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter) ([]contract.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := []contract.Entry{}
	for _, id := range m.order {
		c := m.records[id]
		if f.Match(c) {
			entries = append(entries, contract.Entry{ID: id, Contract: c.Clone()})
		}
	}
	return entries, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *MemoryStore) Events(ctx context.Context, id string) ([]contract.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.events[id]
	out := make([]contract.Event, len(src))
	for i, ev := range src {
		ev.Detail = cloneDetail(ev.Detail)
		out[i] = ev
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
