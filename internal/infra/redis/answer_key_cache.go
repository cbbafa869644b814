package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"iq-test-service/internal/domain"
)

// QuestionLoader fetches questions (with answer labels) from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, testID string) ([]domain.Question, error)
}

// AnswerKeyCache caches answer keys in Redis (hash per test) and falls back to a loader on cache miss.
// Keys are stored as: HSET test:{testID}:answers {questionID} {optionLabel}
type AnswerKeyCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewAnswerKeyCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnswerKeyCache) AnswerKey(ctx context.Context, testID string) (domain.AnswerKey, error) {
	answersKey := c.answersKey(testID)

	answers, err := c.client.HGetAll(ctx, answersKey).Result()
	if err == nil && len(answers) > 0 {
		return domain.AnswerKey(answers), nil
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := c.client.HGetAll(ctx, answersKey).Result()
		if err == nil && len(answers) > 0 {
			return domain.AnswerKey(answers), nil
		}

		questions, err := c.loader.LoadQuestions(ctx, testID)
		if err != nil {
			return nil, err
		}
		key := domain.KeyOf(questions)
		if len(key) == 0 {
			return key, nil
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for questionID, label := range key {
			pipe.HSet(ctx, answersKey, questionID, label)
		}
		if ttl > 0 {
			pipe.Expire(ctx, answersKey, ttl)
		}
		// best-effort: a failed write only costs another load
		_, _ = pipe.Exec(ctx)

		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.AnswerKey), nil
}

// PublicQuestions always reads through to the loader; question text is not
// cached in this lightweight form.
func (c *AnswerKeyCache) PublicQuestions(ctx context.Context, testID string) ([]domain.PublicQuestion, error) {
	questions, err := c.loader.LoadQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.Public())
	}
	return out, nil
}

func (c *AnswerKeyCache) answersKey(testID string) string {
	return "test:" + testID + ":answers"
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
