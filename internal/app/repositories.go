package app

import (
	"context"

	"iq-test-service/internal/domain"
)

// AttemptRepository persists attempt documents (in-memory, Redis, Postgres).
type AttemptRepository interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	// Get returns domain.ErrAttemptNotFound for unknown ids.
	Get(ctx context.Context, id string) (domain.Attempt, error)
	// Transition atomically applies t only while the stored status equals from.
	// It returns domain.ErrTransitionConflict when the status has moved on.
	Transition(ctx context.Context, id string, from domain.AttemptStatus, t domain.Transition) error
	// ListCompleted returns the user's completed attempts, newest submission first.
	ListCompleted(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// TestCatalog serves test metadata.
type TestCatalog interface {
	// GetTest returns domain.ErrTestNotFound for unknown ids.
	GetTest(ctx context.Context, id string) (domain.Test, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
}

// QuestionKeyStore serves answer keys and their redacted question views.
type QuestionKeyStore interface {
	AnswerKey(ctx context.Context, testID string) (domain.AnswerKey, error)
	PublicQuestions(ctx context.Context, testID string) ([]domain.PublicQuestion, error)
}
