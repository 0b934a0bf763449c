package orchestrator

import (
	"context"
	"testing"
	"time"

	"mediawatch/internal/dedup"
	"mediawatch/internal/model"
	"mediawatch/internal/provider"
)

type stubProvider struct {
	name       string
	candidates []model.Candidate
	err        error
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Discover(context.Context, provider.Query) ([]model.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestRunDedupesAcrossProviders(t *testing.T) {
	a := stubProvider{name: "a", candidates: []model.Candidate{
		{Title: "Acme wins award", Teaser: "details", URL: "https://example.com/a", PublishedAt: ts("2026-07-30T10:00:00Z"), DateConfidence: model.ConfidenceHigh, Authoritative: true},
	}}
	b := stubProvider{name: "b", candidates: []model.Candidate{
		{Title: "Acme wins award", Teaser: "details", URL: "https://example.com/a?utm_source=x", PublishedAt: ts("2026-07-30T10:00:00Z"), DateConfidence: model.ConfidenceHigh, Authoritative: true},
	}}

	o := New([]provider.Provider{a, b}, dedup.DefaultNearDuplicateConfig(), nil, nil)

	queries := []KeywordQuery{{TopicID: 1, Keyword: model.Keyword{Text: "acme"}}}
	results, err := o.Run(context.Background(), "Acme Inc", queries, time.Time{}, Budgets{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 topic result, got %d", len(results))
	}
	if len(results[0].Candidates) != 1 {
		t.Fatalf("expected exact-url dedup to merge to 1 candidate, got %d", len(results[0].Candidates))
	}
}

func TestRunSurvivesProviderError(t *testing.T) {
	failing := stubProvider{name: "broken", err: context.DeadlineExceeded}
	working := stubProvider{name: "ok", candidates: []model.Candidate{
		{Title: "Real story", URL: "https://example.com/x", PublishedAt: ts("2026-07-30T10:00:00Z"), DateConfidence: model.ConfidenceHigh, Authoritative: true},
	}}

	o := New([]provider.Provider{failing, working}, dedup.DefaultNearDuplicateConfig(), nil, nil)
	queries := []KeywordQuery{{TopicID: 1, Keyword: model.Keyword{Text: "x"}}}

	results, err := o.Run(context.Background(), "Acme Inc", queries, time.Time{}, Budgets{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 || len(results[0].Candidates) != 1 {
		t.Fatalf("expected the working provider's candidate to survive, got %+v", results)
	}
}

func TestRunAppliesFromDateCutoff(t *testing.T) {
	old := stubProvider{name: "a", candidates: []model.Candidate{
		{Title: "Old story", URL: "https://example.com/old", PublishedAt: ts("2020-01-01T00:00:00Z"), DateConfidence: model.ConfidenceHigh, Authoritative: true},
	}}
	recent := stubProvider{name: "b", candidates: []model.Candidate{
		{Title: "Recent story", URL: "https://example.com/new", PublishedAt: ts("2026-07-30T00:00:00Z"), DateConfidence: model.ConfidenceHigh, Authoritative: true},
	}}

	o := New([]provider.Provider{old, recent}, dedup.DefaultNearDuplicateConfig(), nil, nil)
	queries := []KeywordQuery{{TopicID: 1, Keyword: model.Keyword{Text: "story"}}}

	fromDate := *ts("2026-01-01T00:00:00Z")
	results, err := o.Run(context.Background(), "Acme Inc", queries, fromDate, Budgets{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results[0].Candidates) != 1 || results[0].Candidates[0].Title != "Recent story" {
		t.Fatalf("expected only the recent story to survive the cutoff, got %+v", results[0].Candidates)
	}
}

func TestRunOrdersByRecencyThenConfidenceThenTitle(t *testing.T) {
	p := stubProvider{name: "a", candidates: []model.Candidate{
		{Title: "B story", URL: "https://example.com/b", PublishedAt: ts("2026-07-29T00:00:00Z"), DateConfidence: model.ConfidenceHigh},
		{Title: "A story", URL: "https://example.com/a", PublishedAt: ts("2026-07-30T00:00:00Z"), DateConfidence: model.ConfidenceHigh},
		{Title: "No date story", URL: "https://example.com/c", DateConfidence: model.ConfidenceNone},
	}}
	o := New([]provider.Provider{p}, dedup.DefaultNearDuplicateConfig(), nil, nil)
	queries := []KeywordQuery{{TopicID: 1, Keyword: model.Keyword{Text: "story"}}}

	results, err := o.Run(context.Background(), "Acme Inc", queries, time.Time{}, Budgets{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := results[0].Candidates
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].Title != "A story" || got[1].Title != "B story" || got[2].Title != "No date story" {
		t.Errorf("unexpected order: %v, %v, %v", got[0].Title, got[1].Title, got[2].Title)
	}
}

func TestRunTruncatesToMaxKeywords(t *testing.T) {
	p := stubProvider{name: "a", candidates: nil}
	o := New([]provider.Provider{p}, dedup.DefaultNearDuplicateConfig(), nil, nil)

	queries := []KeywordQuery{
		{TopicID: 1, Keyword: model.Keyword{Text: "a"}},
		{TopicID: 2, Keyword: model.Keyword{Text: "b"}},
		{TopicID: 3, Keyword: model.Keyword{Text: "c"}},
	}
	results, err := o.Run(context.Background(), "Acme Inc", queries, time.Time{}, Budgets{MaxKeywordsPerRun: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected only 1 topic processed after truncation, got %d", len(results))
	}
}
