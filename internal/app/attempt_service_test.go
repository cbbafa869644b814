package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"iq-test-service/internal/app"
	"iq-test-service/internal/domain"
	"iq-test-service/internal/infra/memory"
	"iq-test-service/internal/logger"
)

func TestSubmitScores(t *testing.T) {
	tests := []struct {
		name    string
		testID  string
		answers []domain.Answer
		iq      float64
	}{
		{
			name:   "three of five",
			testID: "five",
			answers: []domain.Answer{
				{QuestionID: "f1", Answer: "option1"},
				{QuestionID: "f2", Answer: "option2"},
				{QuestionID: "f3", Answer: "option3"},
				{QuestionID: "f4", Answer: "option1"},
				{QuestionID: "f5", Answer: "option1"},
			},
			iq: 116,
		},
		{
			name:   "none of four",
			testID: "four",
			answers: []domain.Answer{
				{QuestionID: "r1", Answer: "option4"},
				{QuestionID: "r2", Answer: "option4"},
			},
			iq: 80,
		},
		{
			name:    "one of one",
			testID:  "one",
			answers: []domain.Answer{{QuestionID: "o1", Answer: "option3"}},
			iq:      140,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newServiceEnv(t)
			ctx := context.Background()

			id, err := env.svc.Start(ctx, tc.testID, "u1")
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			env.advance(30 * time.Second)

			iq, err := env.svc.Submit(ctx, id, "u1", tc.answers)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if iq != tc.iq {
				t.Fatalf("expected iq %v, got %v", tc.iq, iq)
			}

			stored, err := env.store.Get(ctx, id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if stored.Status != domain.StatusCompleted || stored.Score == nil || *stored.Score != tc.iq {
				t.Fatalf("unexpected stored attempt %+v", stored)
			}
			if stored.SubmittedAt == nil || !stored.SubmittedAt.Equal(env.clock()) {
				t.Fatalf("expected submittedAt %v, got %v", env.clock(), stored.SubmittedAt)
			}
			if len(stored.Answers) != len(tc.answers) {
				t.Fatalf("expected %d stored answers, got %d", len(tc.answers), len(stored.Answers))
			}
		})
	}
}

func TestSubmitAfterDeadline(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, err := env.svc.Start(ctx, "one", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	env.advance(70 * time.Second)

	_, err = env.svc.Submit(ctx, id, "u1", []domain.Answer{{QuestionID: "o1", Answer: "option3"}})
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	stored, _ := env.store.Get(ctx, id)
	if stored.Status != domain.StatusTimedOut || stored.Score != nil {
		t.Fatalf("expected timed-out attempt without score, got %+v", stored)
	}

	_, err = env.svc.Submit(ctx, id, "u1", nil)
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired on resubmit, got %v", err)
	}
}

func TestSubmitWithinGracePeriod(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, _ := env.svc.Start(ctx, "one", "u1")
	env.advance(time.Minute + domain.GracePeriod)

	if _, err := env.svc.Submit(ctx, id, "u1", nil); err != nil {
		t.Fatalf("expected submit at the grace boundary to pass, got %v", err)
	}
}

func TestConcurrentSubmitsSingleWinner(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, err := env.svc.Start(ctx, "five", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		scores []float64
		errs   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers := []domain.Answer{{QuestionID: "f1", Answer: "option1"}}
			if i%2 == 0 {
				answers = append(answers, domain.Answer{QuestionID: "f2", Answer: "option2"})
			}
			iq, err := env.svc.Submit(ctx, id, "u1", answers)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			scores = append(scores, iq)
		}(i)
	}
	wg.Wait()

	if len(scores) != 1 {
		t.Fatalf("expected exactly one successful submit, got %v", scores)
	}
	for _, err := range errs {
		if !errors.Is(err, domain.ErrAlreadyCompleted) {
			t.Fatalf("expected already completed for losers, got %v", err)
		}
	}
	stored, _ := env.store.Get(ctx, id)
	if stored.Score == nil || *stored.Score != scores[0] {
		t.Fatalf("stored score %v does not match winner %v", stored.Score, scores[0])
	}
}

func TestSubmitRejections(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Submit(ctx, "", "u1", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.svc.Submit(ctx, "missing", "u1", nil); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}

	id, _ := env.svc.Start(ctx, "five", "u1")
	if _, err := env.svc.Submit(ctx, id, "u1", []domain.Answer{{Answer: "option1"}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank question id, got %v", err)
	}
	if _, err := env.svc.Submit(ctx, id, "u2", nil); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	stored, _ := env.store.Get(ctx, id)
	if stored.Status != domain.StatusInProgress {
		t.Fatalf("rejected submit mutated attempt: %+v", stored)
	}

	first, err := env.svc.Submit(ctx, id, "u1", []domain.Answer{{QuestionID: "f1", Answer: "option1"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.svc.Submit(ctx, id, "u1", []domain.Answer{{QuestionID: "f2", Answer: "option2"}}); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
	stored, _ = env.store.Get(ctx, id)
	if *stored.Score != first || len(stored.Answers) != 1 {
		t.Fatalf("second submit changed the attempt: %+v", stored)
	}
}

func TestStartValidation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Start(ctx, "", "u1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.svc.Start(ctx, "nope", "u1"); !errors.Is(err, domain.ErrTestNotFound) {
		t.Fatalf("expected test not found, got %v", err)
	}

	a, _ := env.svc.Start(ctx, "five", "u1")
	b, _ := env.svc.Start(ctx, "five", "u1")
	if a == b {
		t.Fatalf("expected distinct attempt ids")
	}
	stored, _ := env.store.Get(ctx, a)
	if stored.Status != domain.StatusInProgress || !stored.StartTime.Equal(env.clock()) || stored.Score != nil {
		t.Fatalf("unexpected new attempt %+v", stored)
	}
}

func TestSubmitWithoutQuestions(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, err := env.svc.Start(ctx, "empty", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.svc.Submit(ctx, id, "u1", nil); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}
	stored, _ := env.store.Get(ctx, id)
	if stored.Status != domain.StatusInProgress {
		t.Fatalf("expected attempt to stay in progress, got %s", stored.Status)
	}
}

func TestHistory(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	older, _ := env.svc.Start(ctx, "one", "u1")
	env.advance(10 * time.Second)
	if _, err := env.svc.Submit(ctx, older, "u1", nil); err != nil {
		t.Fatalf("submit older: %v", err)
	}

	newer, _ := env.svc.Start(ctx, "five", "u1")
	env.advance(10 * time.Second)
	if _, err := env.svc.Submit(ctx, newer, "u1", []domain.Answer{{QuestionID: "f1", Answer: "option1"}}); err != nil {
		t.Fatalf("submit newer: %v", err)
	}

	_, _ = env.svc.Start(ctx, "five", "u1")
	expired, _ := env.svc.Start(ctx, "one", "u1")
	other, _ := env.svc.Start(ctx, "one", "u2")
	_, _ = env.svc.Submit(ctx, other, "u2", nil)
	env.advance(2 * time.Minute)
	_, _ = env.svc.Submit(ctx, expired, "u1", nil)

	results, err := env.svc.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if results[0].ID != newer || results[1].ID != older {
		t.Fatalf("expected newest first, got %s then %s", results[0].ID, results[1].ID)
	}
	if results[0].Test.Name != "Five" || results[0].Score != 92 {
		t.Fatalf("unexpected result %+v", results[0])
	}

	results, err = env.svc.History(ctx, "nobody")
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty history, got %v %v", results, err)
	}
}

func TestHistoryDeletedTest(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, _ := env.svc.Start(ctx, "four", "u1")
	if _, err := env.svc.Submit(ctx, id, "u1", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	env.catalog.hide("four")

	results, err := env.svc.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(results) != 1 || results[0].Test.ID != "four" || results[0].Test.Name != "Deleted test" {
		t.Fatalf("expected placeholder test, got %+v", results)
	}
}

func TestStorageFaults(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, _ := env.svc.Start(ctx, "five", "u1")

	failing := &failingStore{AttemptRepository: env.store, err: errors.New("connection refused")}
	svc := app.NewAttemptServiceWithClock(failing, env.catalog, env.keys, logger.NewNop(), env.clock)

	if _, err := svc.Start(ctx, "five", "u1"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on start, got %v", err)
	}
	if _, err := svc.Submit(ctx, id, "u1", nil); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on submit, got %v", err)
	}
	if _, err := svc.History(ctx, "u1"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on history, got %v", err)
	}
}

func TestClock(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, _ := env.svc.Start(ctx, "one", "u1")
	clock, err := env.svc.Clock(ctx, id, "u1")
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	if !clock.Deadline.Equal(env.clock().Add(time.Minute)) || clock.Status != domain.StatusInProgress {
		t.Fatalf("unexpected clock %+v", clock)
	}
	if _, err := env.svc.Clock(ctx, id, "u2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCatalogService(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	svc := app.NewCatalogService(env.catalog, env.keys)

	tests, err := svc.ListTests(ctx)
	if err != nil {
		t.Fatalf("list tests: %v", err)
	}
	if len(tests) != 4 || tests[0].Name != "Empty" {
		t.Fatalf("expected tests sorted by name, got %+v", tests)
	}

	questions, err := svc.ListQuestions(ctx, "five")
	if err != nil || len(questions) != 5 {
		t.Fatalf("expected 5 questions, got %d (%v)", len(questions), err)
	}
	questions, err = svc.ListQuestions(ctx, "unknown")
	if err != nil || questions == nil || len(questions) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", questions, err)
	}
	if _, err := svc.ListQuestions(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type serviceEnv struct {
	svc     *app.AttemptService
	store   *memory.AttemptStore
	catalog *hidingCatalog
	keys    *memory.QuestionCache

	mu  sync.Mutex
	now time.Time
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	env := &serviceEnv{now: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}
	env.catalog = &hidingCatalog{StaticCatalog: memory.NewStaticCatalog(sampleFile()), hidden: map[string]bool{}}
	env.keys = memory.NewQuestionCache(env.catalog, time.Minute)
	env.store = memory.NewAttemptStore()
	env.svc = app.NewAttemptServiceWithClock(env.store, env.catalog, env.keys, logger.NewNop(), env.clock)
	return env
}

func (e *serviceEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *serviceEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func sampleFile() memory.CatalogFile {
	q := func(id, testID, correct string) domain.Question {
		return domain.Question{ID: id, TestID: testID, Text: "Pick " + correct, Option1: "a", Option2: "b", Option3: "c", Option4: "d", CorrectAnswer: correct}
	}
	return memory.CatalogFile{
		Tests: []domain.Test{
			{ID: "five", Name: "Five", TimeLimitMinutes: 10},
			{ID: "four", Name: "Four", TimeLimitMinutes: 10},
			{ID: "one", Name: "One", TimeLimitMinutes: 1},
			{ID: "empty", Name: "Empty", TimeLimitMinutes: 5},
		},
		Questions: []domain.Question{
			q("f1", "five", "option1"), q("f2", "five", "option2"), q("f3", "five", "option3"),
			q("f4", "five", "option4"), q("f5", "five", "option4"),
			q("r1", "four", "option1"), q("r2", "four", "option2"), q("r3", "four", "option3"), q("r4", "four", "option4"),
			q("o1", "one", "option3"),
		},
	}
}

// hidingCatalog simulates tests removed from the catalog after attempts exist.
type hidingCatalog struct {
	*memory.StaticCatalog

	mu     sync.Mutex
	hidden map[string]bool
}

func (c *hidingCatalog) hide(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden[id] = true
}

func (c *hidingCatalog) GetTest(ctx context.Context, id string) (domain.Test, error) {
	c.mu.Lock()
	hidden := c.hidden[id]
	c.mu.Unlock()
	if hidden {
		return domain.Test{}, domain.ErrTestNotFound
	}
	return c.StaticCatalog.GetTest(ctx, id)
}

type failingStore struct {
	app.AttemptRepository
	err error
}

func (s *failingStore) Create(context.Context, domain.Attempt) error { return s.err }

func (s *failingStore) Get(context.Context, string) (domain.Attempt, error) {
	return domain.Attempt{}, s.err
}

func (s *failingStore) ListCompleted(context.Context, string) ([]domain.Attempt, error) {
	return nil, s.err
}
