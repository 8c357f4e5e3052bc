// Package catalog holds the scenario documents the service can grade against.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/scenario"
	"github.com/okian/akut/internal/domain/types"
	"github.com/okian/akut/pkg/logger"
	"github.com/okian/akut/pkg/metrics"
)

// Summary is the listing view of a case.
type Summary = types.CaseSummary

type entry struct {
	scenario model.Scenario
	issues   []scenario.Issue
}

// Catalog is a concurrency-safe in-memory set of scenarios keyed by case id.
type Catalog struct {
	mu    sync.RWMutex
	cases map[string]entry

	pattern     string
	concurrency int
	log         logger.Logger
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		cases:       make(map[string]entry),
		pattern:     "**/*.{json,yaml,yml}",
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("catalog")
	}
	return c
}

// Add lints and stores a raw scenario document. Documents with lint errors
// are rejected with ErrRejected; the issues are returned either way.
func (c *Catalog) Add(doc map[string]any) ([]scenario.Issue, error) {
	issues := scenario.Lint(doc)
	if scenario.HasErrors(issues) {
		metrics.RecordCatalogRejected()
		for _, is := range issues {
			if is.Severity == scenario.SeverityError {
				return issues, fmt.Errorf("%w: %s", ErrRejected, is)
			}
		}
	}

	s := model.DecodeScenario(doc)

	c.mu.Lock()
	if _, exists := c.cases[s.ID]; exists {
		c.mu.Unlock()
		metrics.RecordCatalogRejected()
		return issues, fmt.Errorf("%w: %s", ErrDuplicate, s.ID)
	}
	c.cases[s.ID] = entry{scenario: s, issues: issues}
	n := len(c.cases)
	c.mu.Unlock()

	metrics.RecordCatalogLintWarnings(len(issues))
	metrics.UpdateCatalogCases(n)
	return issues, nil
}

// Get returns the decoded scenario for id.
func (c *Catalog) Get(_ context.Context, id string) (model.Scenario, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cases[id]
	if !ok {
		return model.Scenario{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.scenario, nil
}

// Issues returns the lint warnings recorded when the case was added.
func (c *Catalog) Issues(id string) ([]scenario.Issue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]scenario.Issue, len(e.issues))
	copy(out, e.issues)
	return out, nil
}

// List returns case summaries ordered by id.
func (c *Catalog) List(_ context.Context) []Summary {
	c.mu.RLock()
	out := make([]Summary, 0, len(c.cases))
	for _, e := range c.cases {
		s := e.scenario
		out = append(out, Summary{
			ID:              s.ID,
			Title:           s.Title,
			Subtitle:        s.Subtitle,
			CaseType:        s.CaseType,
			Acuity:          s.Acuity,
			Difficulty:      s.Difficulty,
			ExpectedActions: len(s.ExpectedActions),
			Warnings:        len(e.issues),
		})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of loaded cases.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cases)
}
