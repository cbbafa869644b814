package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"iq-test-service/internal/domain"
)

// Catalog reads tests and questions from Postgres.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) GetTest(ctx context.Context, id string) (domain.Test, error) {
	var t domain.Test
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, description, time_limit_minutes FROM tests WHERE id=$1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.TimeLimitMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Test{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.Test{}, fmt.Errorf("load test: %w", err)
	}
	if err := t.Validate(); err != nil {
		return domain.Test{}, err
	}
	return t, nil
}

func (c *Catalog) ListTests(ctx context.Context) ([]domain.Test, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, name, description, time_limit_minutes FROM tests ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var tests []domain.Test
	for rows.Next() {
		var t domain.Test
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.TimeLimitMinutes); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// LoadQuestions returns a test's questions including answer labels.
func (c *Catalog) LoadQuestions(ctx context.Context, testID string) ([]domain.Question, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, test_id, text, option1, option2, option3, option4, correct_answer
		FROM questions WHERE test_id=$1 ORDER BY position, id`, testID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.Text, &q.Option1, &q.Option2, &q.Option3, &q.Option4, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Upsert writes a catalog in one transaction. Question order within a test
// follows the slice order.
func (c *Catalog) Upsert(ctx context.Context, tests []domain.Test, questions []domain.Question) error {
	return c.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, t := range tests {
			_, err := tx.Exec(ctx, `
				INSERT INTO tests (id, name, description, time_limit_minutes) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description,
					time_limit_minutes=EXCLUDED.time_limit_minutes`,
				t.ID, t.Name, t.Description, t.TimeLimitMinutes)
			if err != nil {
				return fmt.Errorf("upsert test %s: %w", t.ID, err)
			}
		}
		positions := make(map[string]int)
		for _, q := range questions {
			pos := positions[q.TestID]
			positions[q.TestID] = pos + 1
			_, err := tx.Exec(ctx, `
				INSERT INTO questions (id, test_id, position, text, option1, option2, option3, option4, correct_answer)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET test_id=EXCLUDED.test_id, position=EXCLUDED.position, text=EXCLUDED.text,
					option1=EXCLUDED.option1, option2=EXCLUDED.option2, option3=EXCLUDED.option3,
					option4=EXCLUDED.option4, correct_answer=EXCLUDED.correct_answer`,
				q.ID, q.TestID, pos, q.Text, q.Option1, q.Option2, q.Option3, q.Option4, q.CorrectAnswer)
			if err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}
