package repository

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

// MemoryStudentStore keeps the roster in process memory, preserving insertion order.
type MemoryStudentStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]models.Student
	now     func() time.Time
}

// NewMemoryStudentStore builds an empty in-memory store.
func NewMemoryStudentStore() *MemoryStudentStore {
	return &MemoryStudentStore{
		records: make(map[string]models.Student),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns a snapshot of all students in insertion order.
func (s *MemoryStudentStore) List(ctx context.Context) ([]models.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Student, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out, nil
}

// Get returns the student with the given id.
func (s *MemoryStudentStore) Get(ctx context.Context, id string) (*models.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// Add inserts a new student; the id must not exist yet.
func (s *MemoryStudentStore) Add(ctx context.Context, student *models.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[student.StudentID]; exists {
		return ErrDuplicate
	}
	now := s.now()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	s.records[student.StudentID] = *student
	s.order = append(s.order, student.StudentID)
	return nil
}

// Update replaces the stored student with the same id.
func (s *MemoryStudentStore) Update(ctx context.Context, student *models.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[student.StudentID]
	if !ok {
		return ErrNotFound
	}
	student.CreatedAt = current.CreatedAt
	student.UpdatedAt = s.now()
	s.records[student.StudentID] = *student
	return nil
}

// Delete removes the student with the given id.
func (s *MemoryStudentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
