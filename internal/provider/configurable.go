package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediawatch/internal/domainutil"
	"mediawatch/internal/extractor"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/model"
	"mediawatch/internal/recipe"
)

const (
	minDiscoveredPathLen = 20
	maxURLsPerSource      = 50
)

// Configurable discovers candidates from any recipe with a site-search URL
// pattern: it renders the pattern with the keyword, scrapes the results
// page for same-domain links, then runs the shared extractor against each
// discovered link. Grounded on the "universal scraper" shape: search once
// per (recipe, keyword), extract each discovered link independently.
type Configurable struct {
	client    *httpclient.Client
	recipes   *recipe.Store
	extractor *extractor.Extractor
	log       *slog.Logger
}

func NewConfigurable(client *httpclient.Client, recipes *recipe.Store, ex *extractor.Extractor, log *slog.Logger) *Configurable {
	if log == nil {
		log = slog.Default()
	}
	return &Configurable{client: client, recipes: recipes, extractor: ex, log: log}
}

func (p *Configurable) Name() string { return "configurable" }

func (p *Configurable) Discover(ctx context.Context, q Query) ([]model.Candidate, error) {
	recipes, err := p.recipes.ListForDiscovery(ctx, model.DiscoverySiteSearch)
	if err != nil {
		return nil, fmt.Errorf("configurable: list recipes: %w", err)
	}

	var out []model.Candidate
	for _, r := range recipes {
		for _, kw := range q.Keywords {
			keyword := strings.TrimSpace(kw.Text)
			if keyword == "" {
				continue
			}

			links, err := p.searchLinks(ctx, r, keyword)
			if err != nil {
				p.log.Warn("configurable search failed", "domain", r.Domain, "keyword", keyword, "error", err)
				continue
			}

			for i, link := range links {
				if i >= maxURLsPerSource {
					break
				}
				candidate, ok := p.extractCandidate(ctx, link, r, keyword)
				if !ok {
					continue
				}
				out = append(out, candidate)
			}
		}
	}

	return out, nil
}

func (p *Configurable) searchLinks(ctx context.Context, r model.SourceRecipe, keyword string) ([]string, error) {
	searchURL := strings.ReplaceAll(r.SearchURLPattern, "{keyword}", url.QueryEscape(keyword))
	_, body, err := p.client.Get(ctx, searchURL, httpclient.ProfileHTML)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	base := "https://" + r.Domain
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		resolved, err := resolveURL(base, href)
		if err != nil {
			return
		}
		if !sameRegistrableDomain(resolved, r.Domain) {
			return
		}
		parsed, err := url.Parse(resolved)
		if err != nil || len(parsed.Path) <= minDiscoveredPathLen {
			return
		}
		norm := domainutil.NormalizeURL(resolved)
		if seen[norm] {
			return
		}
		seen[norm] = true
		links = append(links, resolved)
	})

	return links, nil
}

func resolveURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func sameRegistrableDomain(candidateURL, domain string) bool {
	return domainutil.EffectiveTLDPlusOne(candidateURL) == domainutil.EffectiveTLDPlusOne(domain)
}

func (p *Configurable) extractCandidate(ctx context.Context, link string, r model.SourceRecipe, keyword string) (model.Candidate, bool) {
	result, err := p.extractor.Extract(ctx, link, &r)
	if err != nil {
		return model.Candidate{}, false
	}

	haystack := strings.ToLower(result.Title + " " + result.Content)
	if keyword != "" && !domainutil.ContainsWord(haystack, keyword) {
		return model.Candidate{}, false
	}

	return model.Candidate{
		Title:          result.Title,
		Teaser:         result.ContentTeaser,
		URL:            link,
		PublishedAt:    result.DateResult.ParsedAt,
		DateConfidence: result.DateResult.Confidence,
		SourceName:     r.Domain,
		ProviderTag:    "configurable",
		MatchedKeyword: keyword,
	}, true
}
