package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"iq-test-service/internal/domain"
)

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          string          `bun:"id,pk"`
	TestID      string          `bun:"test_id,notnull"`
	UserID      string          `bun:"user_id,notnull"`
	Status      string          `bun:"status,notnull"`
	StartTime   time.Time       `bun:"start_time,notnull"`
	Answers     []domain.Answer `bun:"answers,type:jsonb,notnull"`
	Score       *float64        `bun:"score"`
	SubmittedAt *time.Time      `bun:"submitted_at"`
}

func rowFrom(a domain.Attempt) attemptRow {
	answers := a.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return attemptRow{
		ID:          a.ID,
		TestID:      a.TestID,
		UserID:      a.UserID,
		Status:      string(a.Status),
		StartTime:   a.StartTime,
		Answers:     answers,
		Score:       a.Score,
		SubmittedAt: a.SubmittedAt,
	}
}

func (r attemptRow) attempt() (domain.Attempt, error) {
	a := domain.Attempt{
		ID:          r.ID,
		TestID:      r.TestID,
		UserID:      r.UserID,
		Status:      domain.AttemptStatus(r.Status),
		StartTime:   r.StartTime.UTC(),
		Answers:     r.Answers,
		Score:       r.Score,
		SubmittedAt: r.SubmittedAt,
	}
	if a.Answers == nil {
		a.Answers = []domain.Answer{}
	}
	if a.SubmittedAt != nil {
		at := a.SubmittedAt.UTC()
		a.SubmittedAt = &at
	}
	return a, a.Validate()
}

// AttemptStore persists attempts in Postgres. Transition is a single
// conditional UPDATE keyed on the current status.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	row := rowFrom(attempt)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, id string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.attempt()
}

func (s *AttemptStore) Transition(ctx context.Context, id string, from domain.AttemptStatus, t domain.Transition) error {
	submitted := t.SubmittedAt
	row := attemptRow{
		Status:      string(t.Status),
		Score:       t.Score,
		Answers:     t.Answers,
		SubmittedAt: &submitted,
	}
	columns := []string{"status", "score", "submitted_at"}
	if t.Answers != nil {
		columns = append(columns, "answers")
	}

	res, err := s.db.NewUpdate().
		Model(&row).
		Column(columns...).
		Where("id = ?", id).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := s.db.NewSelect().Model((*attemptRow)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrTransitionConflict
}

func (s *AttemptStore) ListCompleted(ctx context.Context, userID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("status = ?", string(domain.StatusCompleted)).
		Order("submitted_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		a, err := row.attempt()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
