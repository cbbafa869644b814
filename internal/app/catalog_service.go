package app

import (
	"context"
	"fmt"
	"sort"

	"iq-test-service/internal/domain"
)

// CatalogService is the read-only side: listing tests and their public questions.
type CatalogService struct {
	tests     TestCatalog
	questions QuestionKeyStore
}

func NewCatalogService(tests TestCatalog, questions QuestionKeyStore) *CatalogService {
	return &CatalogService{tests: tests, questions: questions}
}

func (s *CatalogService) ListTests(ctx context.Context) ([]domain.Test, error) {
	tests, err := s.tests.ListTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	sort.SliceStable(tests, func(i, j int) bool { return tests[i].Name < tests[j].Name })
	return tests, nil
}

// ListQuestions returns the redacted questions of a test. Unknown tests yield
// an empty list.
func (s *CatalogService) ListQuestions(ctx context.Context, testID string) ([]domain.PublicQuestion, error) {
	if testID == "" {
		return nil, fmt.Errorf("%w: test_id query parameter is required", domain.ErrValidation)
	}
	questions, err := s.questions.PublicQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []domain.PublicQuestion{}
	}
	return questions, nil
}
