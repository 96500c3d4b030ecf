package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/orbit-tracer/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventElementAdded EventType = iota
	EventElementDeleted
)

func (t EventType) String() string {
	switch t {
	case EventElementAdded:
		return "added"
	case EventElementDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type  EventType
	Entry Entry
}

// MemoryStore is an in-memory, thread-safe catalog.
type MemoryStore struct {
	mu sync.RWMutex

	nextID  int64
	entries map[int64]Entry
	byName  map[string][]int64

	subs    map[int]func(Event)
	nextSub int
	sizes   SizeRecorder
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSizeRecorder reports the catalog size after every change.
func WithSizeRecorder(r SizeRecorder) MemoryOption {
	return func(s *MemoryStore) { s.sizes = r }
}

// NewMemoryStore constructs an empty catalog.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[int64]Entry),
		byName:  make(map[string][]int64),
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores elements and notifies subscribers once per element.
func (s *MemoryStore) Put(ctx context.Context, elements ...model.OrbitalElement) ([]Entry, error) {
	for i, el := range elements {
		if !el.Valid() {
			return nil, fmt.Errorf("put element %d (%q): %w", i, el.Name(), model.ErrDegenerateOrbit)
		}
	}

	s.mu.Lock()
	added := make([]Entry, 0, len(elements))
	for _, el := range elements {
		s.nextID++
		e := Entry{ID: s.nextID, Element: el}
		s.entries[e.ID] = e
		s.byName[el.Name()] = append(s.byName[el.Name()], e.ID)
		added = append(added, e)
	}
	size := len(s.entries)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	s.reportSize(size)
	// Notify subscribers outside the lock to avoid deadlocks.
	for _, e := range added {
		for _, sub := range subs {
			sub(Event{Type: EventElementAdded, Entry: e})
		}
	}
	return added, nil
}

// Get returns the entry with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("element %d: %w", id, ErrNotFound)
	}
	return e, nil
}

// FindByName returns all entries carrying name, ordered by ID.
func (s *MemoryStore) FindByName(ctx context.Context, name string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byName[name]
	res := make([]Entry, 0, len(ids))
	for _, id := range ids {
		res = append(res, s.entries[id])
	}
	return res, nil
}

// List returns a snapshot of all entries ordered by ID.
func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	res := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		res = append(res, e)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Delete removes an entry and notifies subscribers.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("element %d: %w", id, ErrNotFound)
	}
	delete(s.entries, id)
	name := e.Element.Name()
	ids := s.byName[name]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byName, name)
	} else {
		s.byName[name] = ids
	}
	size := len(s.entries)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	s.reportSize(size)
	for _, sub := range subs {
		sub(Event{Type: EventElementDeleted, Entry: e})
	}
	return nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (s *MemoryStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs copies subscribers in registration order; callers hold s.mu.
func (s *MemoryStore) snapshotSubs() []func(Event) {
	keys := make([]int, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		out = append(out, s.subs[k])
	}
	return out
}

func (s *MemoryStore) reportSize(n int) {
	if s.sizes != nil {
		s.sizes.SetCatalogSize(n)
	}
}

var _ Store = (*MemoryStore)(nil)
