package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"mediawatch/internal/dateresolve"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/model"
)

const gnewsBaseURL = "https://gnews.io/api/v4/search"

// gnewsMaxQueryChars bounds the OR-joined query string GNews accepts per
// request; keywords are batched to stay under it rather than issuing one
// request per keyword. gnewsMaxPages/gnewsPageSize bound how far Discover
// paginates a single batch's results.
const (
	gnewsMaxQueryChars = 200
	gnewsMaxPages      = 3
	gnewsPageSize      = 10
)

var gnewsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type gnewsResponse struct {
	Articles []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
}

// GNews discovers candidates from the GNews search API.
type GNews struct {
	client   *httpclient.Client
	apiKey   string
	language string
}

func NewGNews(client *httpclient.Client, apiKey, language string) *GNews {
	if language == "" {
		language = "en"
	}
	return &GNews{client: client, apiKey: apiKey, language: language}
}

func (p *GNews) Name() string { return "gnews" }

// Discover OR-joins the topic's keywords into as few requests as
// gnewsMaxQueryChars allows, paginating each batch up to gnewsMaxPages, per
// spec §4.7.1 (contrast with SerpAPI's single-keyword parallel queries).
func (p *GNews) Discover(ctx context.Context, q Query) ([]model.Candidate, error) {
	if p.apiKey == "" || len(q.Keywords) == 0 {
		return nil, nil
	}

	var out []model.Candidate
	for _, batchQuery := range batchKeywordsOR(q.Keywords, gnewsMaxQueryChars) {
		candidates, err := p.discoverBatch(ctx, batchQuery)
		if err != nil {
			return out, err
		}
		out = append(out, candidates...)
	}
	return out, nil
}

func (p *GNews) discoverBatch(ctx context.Context, batchQuery string) ([]model.Candidate, error) {
	var out []model.Candidate

	for page := 1; page <= gnewsMaxPages; page++ {
		reqURL := fmt.Sprintf("%s?q=%s&token=%s&lang=%s&max=%d&page=%d",
			gnewsBaseURL, url.QueryEscape(batchQuery), url.QueryEscape(p.apiKey), url.QueryEscape(p.language), gnewsPageSize, page)

		_, body, err := p.client.Get(ctx, reqURL, httpclient.ProfileAPI)
		if err != nil {
			return out, fmt.Errorf("gnews: %w", err)
		}

		var parsed gnewsResponse
		if err := gnewsJSON.Unmarshal(body, &parsed); err != nil {
			return out, fmt.Errorf("gnews: decode response: %w", err)
		}
		if len(parsed.Articles) == 0 {
			break
		}

		for _, a := range parsed.Articles {
			if a.URL == "" {
				continue
			}
			dateResult := dateresolve.Resolve(a.PublishedAt, dateresolve.SourceStructuredData)
			out = append(out, model.Candidate{
				Title:          a.Title,
				Teaser:         model.TruncateTeaser(a.Description),
				URL:            a.URL,
				PublishedAt:    dateResult.ParsedAt,
				DateConfidence: dateResult.Confidence,
				SourceName:     "GNews",
				ProviderTag:    "gnews",
				MatchedKeyword: batchQuery,
				// Only RSS pubDates are treated as ground truth (spec §4.6);
				// an API search result still needs a resolved date to
				// survive the run's from_date cutoff.
				Authoritative: false,
			})
		}

		if len(parsed.Articles) < gnewsPageSize {
			break
		}
	}

	return out, nil
}

// batchKeywordsOR groups keyword texts into OR-joined query strings, each
// kept under maxChars, so a single request covers as many keywords as the
// provider's query-length limit allows.
func batchKeywordsOR(keywords []model.Keyword, maxChars int) []string {
	var batches []string
	var current string

	for _, kw := range keywords {
		text := strings.TrimSpace(kw.Text)
		if text == "" {
			continue
		}
		if current == "" {
			current = text
			continue
		}
		candidate := current + " OR " + text
		if len(candidate) > maxChars {
			batches = append(batches, current)
			current = text
			continue
		}
		current = candidate
	}
	if current != "" {
		batches = append(batches, current)
	}
	return batches
}
