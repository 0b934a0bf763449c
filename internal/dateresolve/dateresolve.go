// Package dateresolve parses publication dates from heterogeneous sources
// and assigns a confidence level, per spec §4.6.
package dateresolve

import (
	"strings"
	"time"

	"mediawatch/internal/model"
)

// Source identifies where a candidate date came from, in priority order
// (highest first) per spec §4.6.
type Source int

const (
	SourceFeed Source = iota
	SourceStructuredData
	SourceSelector
	SourceFreeText
)

// Result is the outcome of resolving a date.
type Result struct {
	ParsedAt   *time.Time
	Confidence model.DateConfidence
}

// layouts tried against free-text date strings, in order. RSS/Atom feeds
// are parsed upstream by gofeed's own PublishedParsed/UpdatedParsed, so
// these layouts cover structured-data and selector-extracted strings.
var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
}

// Resolve parses raw using the priority rules of spec §4.6: a source-level
// hint (source) determines the starting confidence, downgraded to "none"
// if parsing fails.
func Resolve(raw string, source Source) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Confidence: model.ConfidenceNone}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return Result{ParsedAt: &t, Confidence: confidenceFor(source)}
		}
	}

	return Result{Confidence: model.ConfidenceNone}
}

// ResolveFeedTime wraps a date already parsed by the feed library
// (gofeed's PublishedParsed/UpdatedParsed), the highest-priority source.
func ResolveFeedTime(t *time.Time) Result {
	if t == nil {
		return Result{Confidence: model.ConfidenceNone}
	}
	utc := t.UTC()
	return Result{ParsedAt: &utc, Confidence: model.ConfidenceHigh}
}

func confidenceFor(source Source) model.DateConfidence {
	switch source {
	case SourceFeed:
		return model.ConfidenceHigh
	case SourceStructuredData:
		return model.ConfidenceHigh
	case SourceSelector:
		return model.ConfidenceMedium
	case SourceFreeText:
		return model.ConfidenceLow
	default:
		return model.ConfidenceNone
	}
}

// WithinCutoff applies the run's from_date filter (spec §4.6): candidates
// older than fromDate are dropped, and low/none-confidence candidates
// without a resolved date are kept only if the providing source is
// authoritative (e.g. RSS).
func WithinCutoff(result Result, fromDate time.Time, authoritative bool) bool {
	if result.ParsedAt == nil {
		return authoritative
	}
	if result.Confidence == model.ConfidenceLow && !authoritative {
		return false
	}
	return !result.ParsedAt.Before(fromDate)
}
