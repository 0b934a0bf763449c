package dateresolve

import (
	"testing"
	"time"

	"mediawatch/internal/model"
)

func TestResolveStructuredData(t *testing.T) {
	res := Resolve("2024-05-01T10:00:00Z", SourceStructuredData)
	if res.Confidence != model.ConfidenceHigh {
		t.Errorf("confidence = %v, want high", res.Confidence)
	}
	if res.ParsedAt == nil || res.ParsedAt.Year() != 2024 {
		t.Errorf("parsed = %v, want 2024-05-01", res.ParsedAt)
	}
}

func TestResolveFreeTextLowConfidence(t *testing.T) {
	res := Resolve("2024-05-01", SourceFreeText)
	if res.Confidence != model.ConfidenceLow {
		t.Errorf("confidence = %v, want low", res.Confidence)
	}
}

func TestResolveUnparseableIsNone(t *testing.T) {
	res := Resolve("sometime last week", SourceFreeText)
	if res.Confidence != model.ConfidenceNone {
		t.Errorf("confidence = %v, want none", res.Confidence)
	}
	if res.ParsedAt != nil {
		t.Error("expected nil ParsedAt for unparseable input")
	}
}

func TestResolveFeedTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	res := ResolveFeedTime(&now)
	if res.Confidence != model.ConfidenceHigh {
		t.Errorf("confidence = %v, want high", res.Confidence)
	}

	res = ResolveFeedTime(nil)
	if res.Confidence != model.ConfidenceNone {
		t.Errorf("confidence = %v, want none for nil input", res.Confidence)
	}
}

func TestWithinCutoff(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		result        Result
		authoritative bool
		want          bool
	}{
		{
			name:   "recent high confidence kept",
			result: Result{ParsedAt: &newer, Confidence: model.ConfidenceHigh},
			want:   true,
		},
		{
			name:   "old date dropped",
			result: Result{ParsedAt: &older, Confidence: model.ConfidenceHigh},
			want:   false,
		},
		{
			name:   "no date, non-authoritative dropped",
			result: Result{Confidence: model.ConfidenceNone},
			want:   false,
		},
		{
			name:          "no date, authoritative kept",
			result:        Result{Confidence: model.ConfidenceNone},
			authoritative: true,
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinCutoff(tt.result, from, tt.authoritative); got != tt.want {
				t.Errorf("WithinCutoff() = %v, want %v", got, tt.want)
			}
		})
	}
}
