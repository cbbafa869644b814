package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"iq-test-service/internal/domain"
)

// QuestionLoader fetches questions (with answer labels) from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, testID string) ([]domain.Question, error)
}

// QuestionCache caches a test's questions with TTL to avoid repeated DB hits.
// Questions are immutable during an attempt, so stale reads are harmless.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) AnswerKey(ctx context.Context, testID string) (domain.AnswerKey, error) {
	questions, err := c.questions(ctx, testID)
	if err != nil {
		return nil, err
	}
	return domain.KeyOf(questions), nil
}

func (c *QuestionCache) PublicQuestions(ctx context.Context, testID string) ([]domain.PublicQuestion, error) {
	questions, err := c.questions(ctx, testID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.Public())
	}
	return out, nil
}

func (c *QuestionCache) questions(ctx context.Context, testID string) ([]domain.Question, error) {
	if qs, ok := c.cached(testID); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		if qs, ok := c.cached(testID); ok {
			return qs, nil
		}

		qs, err := c.loader.LoadQuestions(ctx, testID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[testID] = cachedQuestions{
			questions: qs,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) cached(testID string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[testID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
