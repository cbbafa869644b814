package domain

import (
	"fmt"
	"time"
)

// GracePeriod absorbs network latency on top of a test's nominal time limit.
const GracePeriod = 5 * time.Second

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in-progress"
	StatusCompleted  AttemptStatus = "completed"
	StatusTimedOut   AttemptStatus = "timed-out"
)

// Terminal reports whether no further transition is allowed from s.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusTimedOut
}

func (s AttemptStatus) valid() bool {
	return s == StatusInProgress || s.Terminal()
}

// OptionLabels are the only valid answer labels for a question.
var OptionLabels = [4]string{"option1", "option2", "option3", "option4"}

// Test is catalog metadata for one IQ test.
type Test struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	Description      string `json:"description" yaml:"description"`
	TimeLimitMinutes int    `json:"time_limit_minutes" yaml:"time_limit_minutes"`
}

// TimeLimit is the nominal duration allowed for an attempt.
func (t Test) TimeLimit() time.Duration {
	return time.Duration(t.TimeLimitMinutes) * time.Minute
}

func (t Test) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: test without id", ErrMalformedDocument)
	}
	if t.TimeLimitMinutes <= 0 {
		return fmt.Errorf("%w: test %s has time limit %d", ErrMalformedDocument, t.ID, t.TimeLimitMinutes)
	}
	return nil
}

// Question is a multiple-choice item including its answer label.
// It must never be serialized to clients; use Public instead.
type Question struct {
	ID            string `yaml:"id"`
	TestID        string `yaml:"test_id"`
	Text          string `yaml:"text"`
	Option1       string `yaml:"option1"`
	Option2       string `yaml:"option2"`
	Option3       string `yaml:"option3"`
	Option4       string `yaml:"option4"`
	CorrectAnswer string `yaml:"correct_answer"`
}

func (q Question) Validate() error {
	if q.ID == "" || q.TestID == "" {
		return fmt.Errorf("%w: question without id or test id", ErrMalformedDocument)
	}
	for _, label := range OptionLabels {
		if q.CorrectAnswer == label {
			return nil
		}
	}
	return fmt.Errorf("%w: question %s has answer label %q", ErrMalformedDocument, q.ID, q.CorrectAnswer)
}

// Public strips the answer label.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Option1: q.Option1,
		Option2: q.Option2,
		Option3: q.Option3,
		Option4: q.Option4,
	}
}

// PublicQuestion is the client-facing view of a question.
type PublicQuestion struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
}

// AnswerKey maps question id to its correct option label.
type AnswerKey map[string]string

// KeyOf builds the answer key for a set of questions.
func KeyOf(questions []Question) AnswerKey {
	key := make(AnswerKey, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectAnswer
	}
	return key
}

// Answer is one submitted response.
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// Attempt is one user's timed run through a test.
type Attempt struct {
	ID          string        `json:"id"`
	TestID      string        `json:"test_id"`
	UserID      string        `json:"user_id"`
	StartTime   time.Time     `json:"startTime"`
	Status      AttemptStatus `json:"status"`
	Answers     []Answer      `json:"answers"`
	Score       *float64      `json:"score"`
	SubmittedAt *time.Time    `json:"submittedAt"`
}

// Validate rejects documents that break the attempt invariants.
func (a Attempt) Validate() error {
	switch {
	case a.ID == "" || a.TestID == "" || a.UserID == "":
		return fmt.Errorf("%w: attempt missing identifiers", ErrMalformedDocument)
	case a.StartTime.IsZero():
		return fmt.Errorf("%w: attempt %s without start time", ErrMalformedDocument, a.ID)
	case !a.Status.valid():
		return fmt.Errorf("%w: attempt %s has status %q", ErrMalformedDocument, a.ID, a.Status)
	case (a.Score != nil) != (a.Status == StatusCompleted):
		return fmt.Errorf("%w: attempt %s score does not match status %s", ErrMalformedDocument, a.ID, a.Status)
	case (a.SubmittedAt != nil) != a.Status.Terminal():
		return fmt.Errorf("%w: attempt %s submission time does not match status %s", ErrMalformedDocument, a.ID, a.Status)
	}
	return nil
}

// Transition is the terminal update applied to an in-progress attempt.
type Transition struct {
	Status      AttemptStatus
	Score       *float64
	Answers     []Answer
	SubmittedAt time.Time
}

// Apply returns a copy of a with the transition applied.
func (t Transition) Apply(a Attempt) Attempt {
	a.Status = t.Status
	a.Score = t.Score
	if t.Answers != nil {
		a.Answers = t.Answers
	}
	submitted := t.SubmittedAt
	a.SubmittedAt = &submitted
	return a
}

// Result is the history projection of a completed attempt.
type Result struct {
	ID          string    `json:"id"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
	Test        Test      `json:"test"`
}

// DeletedTest stands in for catalog entries removed after an attempt was completed.
func DeletedTest(id string) Test {
	return Test{ID: id, Name: "Deleted test"}
}

// AttemptClock lets clients render the remaining time of an attempt.
type AttemptClock struct {
	AttemptID string        `json:"attemptId"`
	Status    AttemptStatus `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Deadline  time.Time     `json:"deadline"`
}

// Remaining is the time left before the deadline, never negative.
func (c AttemptClock) Remaining(now time.Time) time.Duration {
	left := c.Deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
