package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"iq-test-service/internal/domain"
)

// AttemptStore keeps attempts as JSON documents in Redis.
// Notes:
//   - attempt:{id} holds the document; ids are random so keys are not enumerable.
//   - attempts:{userID}:completed is a sorted set of completed attempt ids
//     scored by submission time (unix millis) for history reads.
//   - Transition uses WATCH/MULTI so two submitters racing on the same
//     attempt cannot both commit a terminal state.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key(attempt.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	if !created {
		return domain.ErrTransitionConflict
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, id string) (domain.Attempt, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return decodeAttempt(raw)
}

func (s *AttemptStore) Transition(ctx context.Context, id string, from domain.AttemptStatus, t domain.Transition) error {
	key := s.key(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return err
		}
		attempt, err := decodeAttempt(raw)
		if err != nil {
			return err
		}
		if attempt.Status != from {
			return domain.ErrTransitionConflict
		}

		next := t.Apply(attempt)
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode attempt: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if next.Status == domain.StatusCompleted {
				pipe.ZAdd(ctx, s.completedKey(next.UserID), redis.Z{
					Score:  float64(next.SubmittedAt.UnixMilli()),
					Member: next.ID,
				})
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrTransitionConflict
	}
	return err
}

func (s *AttemptStore) ListCompleted(ctx context.Context, userID string) ([]domain.Attempt, error) {
	ids, err := s.client.ZRevRange(ctx, s.completedKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list completed ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	docs, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load completed attempts: %w", err)
	}

	out := make([]domain.Attempt, 0, len(docs))
	for _, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			continue
		}
		attempt, err := decodeAttempt([]byte(raw))
		if err != nil {
			return nil, err
		}
		if attempt.UserID == userID && attempt.Status == domain.StatusCompleted {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (s *AttemptStore) key(id string) string {
	return "attempt:" + id
}

func (s *AttemptStore) completedKey(userID string) string {
	return "attempts:" + userID + ":completed"
}

func decodeAttempt(raw []byte) (domain.Attempt, error) {
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}
	if err := attempt.Validate(); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}
