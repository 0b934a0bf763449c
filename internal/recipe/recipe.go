// Package recipe implements the Source Recipe Store (spec §4.4): persisted
// per-domain extraction configuration with subdomain fallback lookup.
package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediawatch/internal/domainutil"
	"mediawatch/internal/model"
)

// ErrNotFound is returned when no recipe matches a domain or any of its
// parent domains.
var ErrNotFound = errors.New("recipe: not found")

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Store persists SourceRecipes in SQLite.
type Store struct {
	db *sql.DB
}

// New wraps an already-open, already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByDomain looks up a recipe for host, falling back from the most
// specific subdomain to broader parent domains (spec §4.4), e.g.
// "news.example.co.uk" falls back to "example.co.uk"; "co.uk" is never
// tried, since a bare public suffix can't own a recipe.
func (s *Store) GetByDomain(ctx context.Context, host string) (*model.SourceRecipe, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, candidate := range candidateDomains(host) {
		r, err := s.getExact(ctx, candidate)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// candidateDomains returns host then each of its parent domains, most
// specific first, stopping at the host's eTLD+1 (a bare eTLD+1 is the
// broadest a recipe should ever match against).
func candidateDomains(host string) []string {
	apex := domainutil.EffectiveTLDPlusOne(host)
	labels := strings.Split(host, ".")
	var out []string
	for i := 0; i < len(labels)-1; i++ {
		candidate := strings.Join(labels[i:], ".")
		out = append(out, candidate)
		if candidate == apex {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, host)
	}
	return out
}

func (s *Store) getExact(ctx context.Context, domain string) (*model.SourceRecipe, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT domain, search_url_pattern, title_selector, content_selector, date_selector,
		        rss_urls, sitemap_url, discovery_type, js_rendered, updated_at
		 FROM source_recipes WHERE domain = ?`, domain,
	)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recipe: %w", err)
	}
	return r, nil
}

// Upsert inserts or replaces the recipe for r.Domain. Idempotent.
func (s *Store) Upsert(ctx context.Context, r model.SourceRecipe) error {
	r.Domain = strings.ToLower(r.Domain)
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_recipes (domain, search_url_pattern, title_selector, content_selector,
		                             date_selector, rss_urls, sitemap_url, discovery_type, js_rendered, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (domain) DO UPDATE SET
		   search_url_pattern = excluded.search_url_pattern,
		   title_selector = excluded.title_selector,
		   content_selector = excluded.content_selector,
		   date_selector = excluded.date_selector,
		   rss_urls = excluded.rss_urls,
		   sitemap_url = excluded.sitemap_url,
		   discovery_type = excluded.discovery_type,
		   js_rendered = excluded.js_rendered,
		   updated_at = excluded.updated_at`,
		r.Domain, r.SearchURLPattern, r.TitleSelector, r.ContentSelector, r.DateSelector,
		strings.Join(r.RSSURLs, ","), r.SitemapURL, string(r.DiscoveryType), boolToInt(r.JSRendered), now,
	)
	if err != nil {
		return fmt.Errorf("upsert recipe: %w", err)
	}
	return nil
}

// Delete removes the recipe for domain, if any.
func (s *Store) Delete(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM source_recipes WHERE domain = ?`, strings.ToLower(domain))
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return nil
}

// ListAll returns every recipe, ordered by domain.
func (s *Store) ListAll(ctx context.Context) ([]model.SourceRecipe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, search_url_pattern, title_selector, content_selector, date_selector,
		        rss_urls, sitemap_url, discovery_type, js_rendered, updated_at
		 FROM source_recipes ORDER BY domain`,
	)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SourceRecipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListForDiscovery returns every recipe eligible for configurable-HTML
// discovery via dt: rss_urls non-empty for rss, sitemap_url set for
// sitemap, search_url_pattern containing {keyword} for site_search.
func (s *Store) ListForDiscovery(ctx context.Context, dt model.DiscoveryType) ([]model.SourceRecipe, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SourceRecipe, 0, len(all))
	for _, r := range all {
		if r.SupportsDiscovery(dt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecipe(row scannable) (*model.SourceRecipe, error) {
	var r model.SourceRecipe
	var rssURLs sql.NullString
	var discoveryType string
	var jsRendered int
	var updatedAt string

	err := row.Scan(&r.Domain, &r.SearchURLPattern, &r.TitleSelector, &r.ContentSelector, &r.DateSelector,
		&rssURLs, &r.SitemapURL, &discoveryType, &jsRendered, &updatedAt)
	if err != nil {
		return nil, err
	}
	if rssURLs.Valid && rssURLs.String != "" {
		r.RSSURLs = strings.Split(rssURLs.String, ",")
	}
	r.DiscoveryType = model.DiscoveryType(discoveryType)
	r.JSRendered = jsRendered == 1
	r.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &r, nil
}
