package memory

import (
	"context"
	"sort"
	"sync"

	"iq-test-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// Transition is a compare-and-set under the store lock.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
	}
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; ok {
		return domain.ErrTransitionConflict
	}
	s.attempts[attempt.ID] = clone(attempt)
	return nil
}

func (s *AttemptStore) Get(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return clone(attempt), nil
}

func (s *AttemptStore) Transition(_ context.Context, id string, from domain.AttemptStatus, t domain.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != from {
		return domain.ErrTransitionConflict
	}
	s.attempts[id] = clone(t.Apply(attempt))
	return nil
}

func (s *AttemptStore) ListCompleted(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.UserID == userID && a.Status == domain.StatusCompleted {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(*out[j].SubmittedAt)
	})
	return out, nil
}

func clone(a domain.Attempt) domain.Attempt {
	answers := make([]domain.Answer, len(a.Answers))
	copy(answers, a.Answers)
	a.Answers = answers
	if a.Score != nil {
		score := *a.Score
		a.Score = &score
	}
	if a.SubmittedAt != nil {
		at := *a.SubmittedAt
		a.SubmittedAt = &at
	}
	return a
}
