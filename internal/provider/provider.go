// Package provider implements the pluggable candidate-discovery sources
// consumed by the orchestrator (spec §4.1).
package provider

import (
	"context"
	"time"

	"mediawatch/internal/model"
)

// Query carries one topic's full keyword set to a Provider. Providers that
// can only search one keyword per request (SerpAPI, the site-search
// Configurable provider) loop over Keywords themselves; providers that can
// batch (GNews) join them into as few requests as their API allows.
type Query struct {
	BrandName     string
	TopicName     string
	Keywords      []model.Keyword
	QueryTemplate string // may contain {brand} and {keyword}; no provider in this package renders it, each searches on the keyword text
	FromDate      time.Time
}

// Provider discovers candidate articles for one topic's keyword set. Every
// implementation must be safe for concurrent use by the orchestrator's
// fan-out.
type Provider interface {
	// Name identifies the provider for logging and metrics labels.
	Name() string
	// Discover returns candidates matching the query, or an error if the
	// provider itself failed (network, auth, quota). A provider returning
	// zero candidates with a nil error is a normal "no results" outcome.
	Discover(ctx context.Context, q Query) ([]model.Candidate, error)
}

// BuildQuery renders a topic's query template against one keyword, falling
// back to the bare keyword when the template is empty, per spec §4.1.
func BuildQuery(template, brand, keyword string) string {
	if template == "" {
		return keyword
	}
	return renderTemplate(template, brand, keyword)
}

func renderTemplate(template, brand, keyword string) string {
	out := make([]byte, 0, len(template))
	for i := 0; i < len(template); i++ {
		switch {
		case matchToken(template, i, "{brand}"):
			out = append(out, brand...)
			i += len("{brand}") - 1
		case matchToken(template, i, "{keyword}"):
			out = append(out, keyword...)
			i += len("{keyword}") - 1
		default:
			out = append(out, template[i])
		}
	}
	return string(out)
}

func matchToken(s string, i int, token string) bool {
	return i+len(token) <= len(s) && s[i:i+len(token)] == token
}
