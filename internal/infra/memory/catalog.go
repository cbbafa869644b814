package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"iq-test-service/internal/domain"
)

// CatalogFile is the YAML layout of a seed catalog.
type CatalogFile struct {
	Tests     []domain.Test     `yaml:"tests"`
	Questions []domain.Question `yaml:"questions"`
}

// ReadCatalogFile parses and validates a seed catalog.
func ReadCatalogFile(path string) (CatalogFile, error) {
	var file CatalogFile
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	known := make(map[string]bool, len(file.Tests))
	for _, t := range file.Tests {
		if err := t.Validate(); err != nil {
			return file, err
		}
		known[t.ID] = true
	}
	for _, q := range file.Questions {
		if err := q.Validate(); err != nil {
			return file, err
		}
		if !known[q.TestID] {
			return file, fmt.Errorf("%w: question %s references unknown test %s", domain.ErrMalformedDocument, q.ID, q.TestID)
		}
	}
	return file, nil
}

// StaticCatalog is a test catalog and question loader backed by in-memory
// data (useful for tests/demos).
type StaticCatalog struct {
	tests     map[string]domain.Test
	order     []string
	questions map[string][]domain.Question
}

func NewStaticCatalog(file CatalogFile) *StaticCatalog {
	c := &StaticCatalog{
		tests:     make(map[string]domain.Test, len(file.Tests)),
		questions: make(map[string][]domain.Question),
	}
	for _, t := range file.Tests {
		if _, ok := c.tests[t.ID]; !ok {
			c.order = append(c.order, t.ID)
		}
		c.tests[t.ID] = t
	}
	for _, q := range file.Questions {
		c.questions[q.TestID] = append(c.questions[q.TestID], q)
	}
	return c
}

func (c *StaticCatalog) GetTest(_ context.Context, id string) (domain.Test, error) {
	if t, ok := c.tests[id]; ok {
		return t, nil
	}
	return domain.Test{}, domain.ErrTestNotFound
}

func (c *StaticCatalog) ListTests(_ context.Context) ([]domain.Test, error) {
	out := make([]domain.Test, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tests[id])
	}
	return out, nil
}

// LoadQuestions returns a copy of the test's questions; unknown tests have none.
func (c *StaticCatalog) LoadQuestions(_ context.Context, testID string) ([]domain.Question, error) {
	qs := c.questions[testID]
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out, nil
}
