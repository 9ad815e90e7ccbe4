package replicator

import (
	"maps"
	"slices"
	"sync"
)

// MemStore is an in-memory Writer, mostly useful as a mirror in tests and
// for peers that keep replicated state in memory only. It is safe for
// concurrent use.
type MemStore struct {
	mu       sync.Mutex
	entities map[Entity]map[string]any
}

var (
	_ Writer  = (*MemStore)(nil)
	_ Batcher = (*MemStore)(nil)
)

func NewMemStore() *MemStore {
	return &MemStore{entities: make(map[Entity]map[string]any)}
}

func (s *MemStore) Entities() ([]Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.entities)), nil
}

func (s *MemStore) Get(e Entity, name string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entities[e][name]
	return v, ok, nil
}

func (s *MemStore) Put(e Entity, name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memPut(s.entities, e, name, v)
	return nil
}

func (s *MemStore) Delete(e Entity, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memDelete(s.entities, e, name)
	return nil
}

// Remove drops every component of e.
func (s *MemStore) Remove(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, e)
}

// Len returns the number of entities with at least one component.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// Snapshot returns a copy of the store contents.
func (s *MemStore) Snapshot() map[Entity]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntities(s.entities)
}

// Batch runs fn against a private copy of the store and swaps the copy in
// only when fn succeeds.
func (s *MemStore) Batch(fn func(w Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memBatch{entities: cloneEntities(s.entities)}
	if err := fn(tx); err != nil {
		return err
	}
	s.entities = tx.entities
	return nil
}

type memBatch struct {
	entities map[Entity]map[string]any
}

func (b *memBatch) Entities() ([]Entity, error) {
	return slices.Sorted(maps.Keys(b.entities)), nil
}

func (b *memBatch) Get(e Entity, name string) (any, bool, error) {
	v, ok := b.entities[e][name]
	return v, ok, nil
}

func (b *memBatch) Put(e Entity, name string, v any) error {
	memPut(b.entities, e, name, v)
	return nil
}

func (b *memBatch) Delete(e Entity, name string) error {
	memDelete(b.entities, e, name)
	return nil
}

func memPut(entities map[Entity]map[string]any, e Entity, name string, v any) {
	m := entities[e]
	if m == nil {
		m = make(map[string]any)
		entities[e] = m
	}
	m[name] = v
}

func memDelete(entities map[Entity]map[string]any, e Entity, name string) {
	m := entities[e]
	if m == nil {
		return
	}
	delete(m, name)
	if len(m) == 0 {
		delete(entities, e)
	}
}

func cloneEntities(src map[Entity]map[string]any) map[Entity]map[string]any {
	dst := make(map[Entity]map[string]any, len(src))
	for e, m := range src {
		dst[e] = maps.Clone(m)
	}
	return dst
}
