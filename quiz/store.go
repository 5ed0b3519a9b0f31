// File: quiz/store.go
package quiz

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrQuizNotFound is returned by Get for unknown quiz ids.
var ErrQuizNotFound = errors.New("quiz not found")

// Store keeps imported quiz snapshots in memory, keyed by a generated id.
// When the store is full the oldest quiz is evicted.
type Store struct {
	mu       sync.RWMutex
	max      int
	quizzes  map[string]*Quiz
	ordering []string // insertion order, oldest first
}

// NewStore creates a Store admitting at most max quizzes.
func NewStore(max int) *Store {
	return &Store{
		max:     max,
		quizzes: make(map[string]*Quiz),
	}
}

// Put stores a quiz and returns its id, evicting the oldest entry if full.
func (s *Store) Put(q *Quiz) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.quizzes) >= s.max {
		oldest := s.ordering[0]
		s.ordering = s.ordering[1:]
		delete(s.quizzes, oldest)
	}
	s.quizzes[id] = q
	s.ordering = append(s.ordering, id)
	return id
}

// Get returns the quiz stored under id.
func (s *Store) Get(id string) (*Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, ErrQuizNotFound
	}
	return q, nil
}

// Len returns the number of stored quizzes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quizzes)
}
