package dedup

import (
	"testing"
	"time"

	"mediawatch/internal/model"

	"github.com/google/go-cmp/cmp"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestExactURL(t *testing.T) {
	candidates := []model.Candidate{
		{Title: "Lego cuts 500 jobs", URL: "https://example.com/a?utm_source=x"},
		{Title: "Lego cuts 500 jobs (dup)", URL: "https://example.com/a"},
		{Title: "Unrelated story", URL: "https://example.com/b"},
	}

	got := ExactURL(candidates)

	want := []model.Candidate{
		{Title: "Lego cuts 500 jobs", URL: "https://example.com/a?utm_source=x"},
		{Title: "Unrelated story", URL: "https://example.com/b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExactURL() mismatch (-want +got):\n%s", diff)
	}
}

func TestExactURLEmpty(t *testing.T) {
	got := ExactURL(nil)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestNearDuplicateMergesReorderedTitle(t *testing.T) {
	candidates := []model.Candidate{
		{
			Title:          "Lego cuts 500 jobs amid toy market slump",
			URL:            "https://news-a.example/lego-jobs",
			PublishedAt:    ts("2024-05-01T08:00:00Z"),
			DateConfidence: model.ConfidenceLow,
			Teaser:         "short",
		},
		{
			Title:          "500 jobs cut at Lego amid toy market slump",
			URL:            "https://news-a.example/lego-layoffs",
			PublishedAt:    ts("2024-05-01T12:00:00Z"),
			DateConfidence: model.ConfidenceHigh,
			Teaser:         "a much longer teaser describing the layoffs in detail",
		},
	}

	kept, removed := NearDuplicate(candidates, DefaultNearDuplicateConfig())

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(kept) != 1 {
		t.Fatalf("kept = %d, want 1", len(kept))
	}
	if kept[0].DateConfidence != model.ConfidenceHigh {
		t.Errorf("expected the higher-confidence record to survive, got %+v", kept[0])
	}
}

func TestNearDuplicateKeepsDistinctStories(t *testing.T) {
	candidates := []model.Candidate{
		{Title: "Lego cuts 500 jobs amid toy market slump", URL: "https://news-a.example/lego-jobs", PublishedAt: ts("2024-05-01T08:00:00Z")},
		{Title: "Lego opens new flagship store in Berlin", URL: "https://news-b.example/lego-berlin", PublishedAt: ts("2024-05-01T08:00:00Z")},
	}

	kept, removed := NearDuplicate(candidates, DefaultNearDuplicateConfig())

	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
}

func TestNearDuplicateRespectsDayWindow(t *testing.T) {
	candidates := []model.Candidate{
		{Title: "Lego cuts 500 jobs amid toy market slump", URL: "https://news-a.example/lego-jobs", PublishedAt: ts("2024-05-01T08:00:00Z")},
		{Title: "Lego cuts 500 jobs amid toy market slump", URL: "https://news-a.example/lego-layoffs", PublishedAt: ts("2024-05-10T08:00:00Z")},
	}

	kept, removed := NearDuplicate(candidates, DefaultNearDuplicateConfig())

	if removed != 0 {
		t.Fatalf("removed = %d, want 0 (outside day window)", removed)
	}
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
}

func TestNearDuplicateAggregatorCrossDomainException(t *testing.T) {
	candidates := []model.Candidate{
		{
			Title:          "Lego cuts 500 jobs amid toy market slump",
			URL:            "https://example.com/lego-jobs",
			PublishedAt:    ts("2024-05-01T08:00:00Z"),
			DateConfidence: model.ConfidenceHigh,
		},
		{
			Title:          "Lego cuts 500 jobs amid toy market slump",
			URL:            "https://news.google.com/rss/articles/xyz",
			PublishedAt:    ts("2024-05-01T09:00:00Z"),
			DateConfidence: model.ConfidenceLow,
		},
	}

	kept, removed := NearDuplicate(candidates, DefaultNearDuplicateConfig())

	if removed != 1 {
		t.Fatalf("removed = %d, want 1 (aggregator wrapper should merge into the direct-publisher copy)", removed)
	}
	if len(kept) != 1 || kept[0].DateConfidence != model.ConfidenceHigh {
		t.Errorf("expected the direct-publisher high-confidence record to survive, got %+v", kept)
	}
}

func TestAgainstHistoryFiltersKnownMention(t *testing.T) {
	historical := []model.Mention{
		{
			Title:       "Lego cuts 500 jobs amid toy market slump",
			RawURL:      "https://news-a.example/lego-jobs",
			PublishedAt: ts("2024-05-01T08:00:00Z"),
		},
	}
	candidates := []model.Candidate{
		{Title: "500 jobs cut at Lego amid toy market slump", URL: "https://news-a.example/lego-layoffs", PublishedAt: ts("2024-05-01T10:00:00Z")},
		{Title: "Completely different headline about sports", URL: "https://news-b.example/sports", PublishedAt: ts("2024-05-01T10:00:00Z")},
	}

	kept, removed := AgainstHistory(candidates, historical, DefaultNearDuplicateConfig())

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(kept) != 1 || kept[0].URL != "https://news-b.example/sports" {
		t.Errorf("unexpected survivor set: %+v", kept)
	}
}

func TestAgainstHistoryNoHistoricalMentions(t *testing.T) {
	candidates := []model.Candidate{
		{Title: "Anything", URL: "https://example.com/a"},
	}
	kept, removed := AgainstHistory(candidates, nil, DefaultNearDuplicateConfig())
	if removed != 0 || len(kept) != 1 {
		t.Errorf("expected passthrough with no historical mentions, got kept=%v removed=%d", kept, removed)
	}
}
