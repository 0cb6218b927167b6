package gv

import (
	"fmt"
	"sync"
)

// Store is an insertion-ordered, id-keyed cache of one resource type.
// It holds at most one entry per id; the latest successful write wins.
// Writes that carry an invalid entity are rejected as a whole.
// This implementation is safe for concurrent use.
type Store[T Entity] struct {
	mu    sync.RWMutex
	order []int64
	items map[int64]T
}

// NewStore creates an empty store.
func NewStore[T Entity]() *Store[T] {
	return &Store[T]{items: make(map[int64]T)}
}

func validateAll[T Entity](entities []T) error {
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return Malformed(err)
		}
	}
	return nil
}

// All returns the entities in order.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// IDs returns the ids in order.
func (s *Store[T]) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]int64(nil), s.order...)
}

// Get returns the entity with id and whether it was present.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	return e, ok
}

// Len returns the number of entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Upsert inserts e at the tail or replaces the existing entry in place.
// Applying the same entity twice leaves the store as a single call does.
func (s *Store[T]) Upsert(e T) error {
	if err := e.Validate(); err != nil {
		return Malformed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(e)
	return nil
}

// put must be called with mu held.
func (s *Store[T]) put(e T) {
	id := e.EntityID()
	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = e
}

// Remove deletes the entity with id. Removing an absent id is a no-op.
func (s *Store[T]) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	s.order = removeID(s.order, id)
	return true
}

// ReplaceAll swaps the store's contents for entities, discarding anything
// not in the new set. Duplicate ids collapse to the last occurrence at the
// position of the first.
func (s *Store[T]) ReplaceAll(entities []T) error {
	if err := validateAll(entities); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = make([]int64, 0, len(entities))
	s.items = make(map[int64]T, len(entities))
	for _, e := range entities {
		s.put(e)
	}
	return nil
}

// Append adds entities whose ids are not yet present, in first-seen order.
// Entities already present are refreshed in place. It returns the number added.
func (s *Store[T]) Append(entities []T) (int, error) {
	if err := validateAll(entities); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, e := range entities {
		if _, ok := s.items[e.EntityID()]; !ok {
			added++
		}
		s.put(e)
	}
	return added, nil
}

// Prepend inserts e at the head unless an entity with the same id exists.
// It reports whether e was inserted.
func (s *Store[T]) Prepend(e T) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, Malformed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := e.EntityID()
	if _, ok := s.items[id]; ok {
		return false, nil
	}
	s.order = append([]int64{id}, s.order...)
	s.items[id] = e
	return true, nil
}

// Modify applies fn to the entity with id under the store lock, so concurrent
// read-modify-write cycles on the same id are serialized. It returns the new
// value and false if the id is absent.
func (s *Store[T]) Modify(id int64, fn func(T) T) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	e = fn(e)
	s.items[id] = e
	return e, true
}

// Swap replaces the entity at oldID with e, keeping its position. If e's id
// already exists elsewhere, the old entry is dropped instead.
func (s *Store[T]) Swap(oldID int64, e T) error {
	if err := e.Validate(); err != nil {
		return Malformed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[oldID]; !ok {
		return fmt.Errorf("swap: id %d not in store", oldID)
	}
	newID := e.EntityID()
	if _, dup := s.items[newID]; dup && newID != oldID {
		delete(s.items, oldID)
		s.order = removeID(s.order, oldID)
		s.items[newID] = e
		return nil
	}
	delete(s.items, oldID)
	for i, v := range s.order {
		if v == oldID {
			s.order[i] = newID
			break
		}
	}
	s.items[newID] = e
	return nil
}

// Clear empties the store. Used on logout and teardown.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.items = make(map[int64]T)
}

func removeID(order []int64, id int64) []int64 {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
