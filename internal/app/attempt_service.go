package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"iq-test-service/internal/domain"
	"iq-test-service/internal/logger"
)

// AttemptService owns the attempt lifecycle: start, submit and history.
type AttemptService struct {
	attempts AttemptRepository
	tests    TestCatalog
	keys     QuestionKeyStore
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewAttemptService(attempts AttemptRepository, tests TestCatalog, keys QuestionKeyStore, log *logger.Logger) *AttemptService {
	return NewAttemptServiceWithClock(attempts, tests, keys, log, time.Now)
}

// NewAttemptServiceWithClock lets tests control elapsed time.
func NewAttemptServiceWithClock(attempts AttemptRepository, tests TestCatalog, keys QuestionKeyStore, log *logger.Logger, now func() time.Time) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		tests:    tests,
		keys:     keys,
		log:      log.With("component", "attempts"),
		now:      now,
		newID:    uuid.NewString,
	}
}

// Start opens a new in-progress attempt for userID and returns its id.
func (s *AttemptService) Start(ctx context.Context, testID, userID string) (string, error) {
	if testID == "" {
		return "", fmt.Errorf("%w: test_id is required", domain.ErrValidation)
	}
	if _, err := s.tests.GetTest(ctx, testID); err != nil {
		if errors.Is(err, domain.ErrTestNotFound) {
			return "", err
		}
		return "", s.storageFault("get test", err, "test_id", testID)
	}

	attempt := domain.Attempt{
		ID:        s.newID(),
		TestID:    testID,
		UserID:    userID,
		StartTime: s.now().UTC(),
		Status:    domain.StatusInProgress,
		Answers:   []domain.Answer{},
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return "", s.storageFault("create attempt", err, "test_id", testID)
	}
	s.log.Info("attempt started", "attempt_id", attempt.ID, "test_id", testID)
	return attempt.ID, nil
}

// Submit grades answers for an in-progress attempt owned by userID. Each
// check fails fast; only the final conditional write mutates the attempt.
func (s *AttemptService) Submit(ctx context.Context, attemptID, userID string, answers []domain.Answer) (float64, error) {
	if attemptID == "" {
		return 0, fmt.Errorf("%w: attemptId is required", domain.ErrValidation)
	}
	for _, a := range answers {
		if a.QuestionID == "" {
			return 0, fmt.Errorf("%w: every answer needs a question_id", domain.ErrValidation)
		}
	}

	attempt, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return 0, err
	}
	switch attempt.Status {
	case domain.StatusCompleted:
		return 0, domain.ErrAlreadyCompleted
	case domain.StatusTimedOut:
		return 0, domain.ErrExpired
	}

	test, err := s.testFor(ctx, attempt)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	if now.Sub(attempt.StartTime) > test.TimeLimit()+domain.GracePeriod {
		err := s.attempts.Transition(ctx, attemptID, domain.StatusInProgress, domain.Transition{
			Status:      domain.StatusTimedOut,
			SubmittedAt: now,
		})
		if err != nil {
			return 0, s.transitionError(err, attemptID)
		}
		s.log.Info("attempt timed out", "attempt_id", attemptID, "elapsed", now.Sub(attempt.StartTime).String())
		return 0, domain.ErrExpired
	}

	key, err := s.keys.AnswerKey(ctx, test.ID)
	if err != nil {
		return 0, s.storageFault("load answer key", err, "test_id", test.ID)
	}
	if len(key) == 0 {
		return 0, domain.ErrNoQuestions
	}

	iq, correct := Score(answers, key)
	if answers == nil {
		answers = []domain.Answer{}
	}
	err = s.attempts.Transition(ctx, attemptID, domain.StatusInProgress, domain.Transition{
		Status:      domain.StatusCompleted,
		Score:       &iq,
		Answers:     answers,
		SubmittedAt: now,
	})
	if err != nil {
		return 0, s.transitionError(err, attemptID)
	}
	s.log.Info("attempt completed", "attempt_id", attemptID, "correct", correct, "total", len(key), "iq_score", iq)
	return iq, nil
}

// History lists the caller's completed attempts joined with test metadata,
// most recent first.
func (s *AttemptService) History(ctx context.Context, userID string) ([]domain.Result, error) {
	attempts, err := s.attempts.ListCompleted(ctx, userID)
	if err != nil {
		return nil, s.storageFault("list completed attempts", err)
	}

	owned := attempts[:0]
	for _, a := range attempts {
		if a.UserID == userID && a.Status == domain.StatusCompleted && a.Score != nil && a.SubmittedAt != nil {
			owned = append(owned, a)
		}
	}

	tests, err := s.resolveTests(ctx, owned)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Result, 0, len(owned))
	for _, a := range owned {
		results = append(results, domain.Result{
			ID:          a.ID,
			Score:       *a.Score,
			SubmittedAt: *a.SubmittedAt,
			Test:        tests[a.TestID],
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SubmittedAt.After(results[j].SubmittedAt)
	})
	return results, nil
}

// Clock reports the deadline of an attempt owned by userID.
func (s *AttemptService) Clock(ctx context.Context, attemptID, userID string) (domain.AttemptClock, error) {
	if attemptID == "" {
		return domain.AttemptClock{}, fmt.Errorf("%w: attemptId is required", domain.ErrValidation)
	}
	attempt, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return domain.AttemptClock{}, err
	}
	test, err := s.testFor(ctx, attempt)
	if err != nil {
		return domain.AttemptClock{}, err
	}
	return domain.AttemptClock{
		AttemptID: attempt.ID,
		Status:    attempt.Status,
		StartTime: attempt.StartTime,
		Deadline:  attempt.StartTime.Add(test.TimeLimit()),
	}, nil
}

// Now exposes the service clock to transports that stream deadlines.
func (s *AttemptService) Now() time.Time {
	return s.now()
}

func (s *AttemptService) loadOwned(ctx context.Context, attemptID, userID string) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			return domain.Attempt{}, err
		}
		return domain.Attempt{}, s.storageFault("get attempt", err, "attempt_id", attemptID)
	}
	if attempt.UserID != userID {
		return domain.Attempt{}, domain.ErrForbidden
	}
	return attempt, nil
}

func (s *AttemptService) testFor(ctx context.Context, attempt domain.Attempt) (domain.Test, error) {
	test, err := s.tests.GetTest(ctx, attempt.TestID)
	if err != nil {
		if errors.Is(err, domain.ErrTestNotFound) {
			return domain.Test{}, err
		}
		return domain.Test{}, s.storageFault("get test", err, "attempt_id", attempt.ID, "test_id", attempt.TestID)
	}
	return test, nil
}

// resolveTests looks up each distinct test once, concurrently.
func (s *AttemptService) resolveTests(ctx context.Context, attempts []domain.Attempt) (map[string]domain.Test, error) {
	var mu sync.Mutex
	tests := make(map[string]domain.Test)
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range attempts {
		testID := a.TestID
		mu.Lock()
		_, queued := tests[testID]
		if !queued {
			tests[testID] = domain.DeletedTest(testID)
		}
		mu.Unlock()
		if queued {
			continue
		}
		g.Go(func() error {
			test, err := s.tests.GetTest(gctx, testID)
			if errors.Is(err, domain.ErrTestNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			tests[testID] = test
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.storageFault("join tests", err)
	}
	return tests, nil
}

// transitionError maps a failed conditional write. A lost race is a
// conflict and is never retried.
func (s *AttemptService) transitionError(err error, attemptID string) error {
	switch {
	case errors.Is(err, domain.ErrTransitionConflict):
		s.log.Warn("concurrent terminal transition rejected", "attempt_id", attemptID)
		return domain.ErrAlreadyCompleted
	case errors.Is(err, domain.ErrAttemptNotFound):
		return err
	}
	return s.storageFault("transition attempt", err, "attempt_id", attemptID)
}

func (s *AttemptService) storageFault(op string, err error, keysAndValues ...interface{}) error {
	kv := append([]interface{}{"op", op, "error", err}, keysAndValues...)
	s.log.Error("storage fault", kv...)
	return domain.ErrStorageUnavailable
}
