package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
)

// MemoryStore implements Store in process memory. Records live until the
// process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	index   map[string]int
	persons []model.Person
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// ListPersons returns a copy of all records in insertion order.
func (s *MemoryStore) ListPersons(_ context.Context) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Person, len(s.persons))
	copy(out, s.persons)
	return out, nil
}

// CountPersons returns the number of records.
func (s *MemoryStore) CountPersons(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.persons), nil
}

// GetPerson returns the record with the given id.
func (s *MemoryStore) GetPerson(_ context.Context, id string) (model.Person, error) {
	key, err := ParseID(id)
	if err != nil {
		return model.Person{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return model.Person{}, ErrNotFound
	}
	return s.persons[i], nil
}

// CreatePerson validates p and appends it with a fresh id.
func (s *MemoryStore) CreatePerson(_ context.Context, p model.Person) (model.Person, error) {
	if err := p.Validate(); err != nil {
		return model.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID()
	for _, taken := s.index[id]; taken; _, taken = s.index[id] {
		id = newID()
	}

	now := s.now()
	p.ID = id
	p.Revision = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	s.index[id] = len(s.persons)
	s.persons = append(s.persons, p)
	return p, nil
}

// UpdatePerson validates p and replaces name and number of the stored
// record.
func (s *MemoryStore) UpdatePerson(_ context.Context, p model.Person) (model.Person, error) {
	key, err := ParseID(p.ID)
	if err != nil {
		return model.Person{}, err
	}
	if err := p.Validate(); err != nil {
		return model.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return model.Person{}, ErrNotFound
	}

	current := s.persons[i]
	current.Name = p.Name
	current.Number = p.Number
	current.Revision++
	current.UpdatedAt = s.now()
	s.persons[i] = current
	return current, nil
}

// DeletePerson removes the record and reindexes those after it.
func (s *MemoryStore) DeletePerson(_ context.Context, id string) error {
	key, err := ParseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return ErrNotFound
	}

	delete(s.index, key)
	s.persons = slices.Delete(s.persons, i, i+1)
	for j := i; j < len(s.persons); j++ {
		s.index[s.persons[j].ID] = j
	}
	return nil
}
