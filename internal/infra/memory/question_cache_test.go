package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"iq-test-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticCatalog(sampleCatalog())}
	cache := NewQuestionCache(loader, time.Minute)

	key, err := cache.AnswerKey(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("answer key: %v", err)
	}
	if key["q1"] != "option2" || len(key) != 2 {
		t.Fatalf("unexpected key %+v", key)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	public, err := cache.PublicQuestions(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("public questions: %v", err)
	}
	if len(public) != 2 || public[0].Option2 != "4" {
		t.Fatalf("unexpected public questions %+v", public)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticCatalog(sampleCatalog())}
	cache := NewQuestionCache(loader, time.Minute)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	if _, err := cache.AnswerKey(context.Background(), "test-1"); err != nil {
		t.Fatalf("answer key: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.AnswerKey(context.Background(), "test-1"); err != nil {
		t.Fatalf("answer key: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestStaticCatalog(t *testing.T) {
	catalog := NewStaticCatalog(sampleCatalog())

	if _, err := catalog.GetTest(context.Background(), "missing"); err != domain.ErrTestNotFound {
		t.Fatalf("expected test not found, got %v", err)
	}
	tests, _ := catalog.ListTests(context.Background())
	if len(tests) != 1 || tests[0].TimeLimitMinutes != 20 {
		t.Fatalf("unexpected tests %+v", tests)
	}
	qs, _ := catalog.LoadQuestions(context.Background(), "missing")
	if len(qs) != 0 {
		t.Fatalf("expected no questions for unknown test, got %d", len(qs))
	}
}

func TestReadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := []byte(`tests:
  - id: test-1
    name: Logic
    description: Patterns
    time_limit_minutes: 15
questions:
  - id: q1
    test_id: test-1
    text: Next in 2, 4, 8?
    option1: "10"
    option2: "16"
    option3: "12"
    option4: "14"
    correct_answer: option2
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err := ReadCatalogFile(path)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	if len(file.Tests) != 1 || len(file.Questions) != 1 || file.Questions[0].CorrectAnswer != "option2" {
		t.Fatalf("unexpected catalog %+v", file)
	}

	bad := []byte("tests: []\nquestions:\n  - {id: q1, test_id: ghost, correct_answer: option1}\n")
	if err := os.WriteFile(path, bad, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadCatalogFile(path); err == nil {
		t.Fatalf("expected orphan question to be rejected")
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, testID string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, testID)
}

func sampleCatalog() CatalogFile {
	return CatalogFile{
		Tests: []domain.Test{{ID: "test-1", Name: "Numbers", Description: "Arithmetic", TimeLimitMinutes: 20}},
		Questions: []domain.Question{
			{ID: "q1", TestID: "test-1", Text: "2 + 2?", Option1: "3", Option2: "4", Option3: "5", Option4: "6", CorrectAnswer: "option2"},
			{ID: "q2", TestID: "test-1", Text: "3 * 3?", Option1: "9", Option2: "6", Option3: "12", Option4: "33", CorrectAnswer: "option1"},
		},
	}
}
