package provider

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"mediawatch/internal/dateresolve"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/model"
)

const serpAPIBaseURL = "https://serpapi.com/search"

var serpAPIJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type serpAPIResponse struct {
	NewsResults []serpAPINewsResult `json:"news_results"`
}

type serpAPINewsResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
	Source  struct {
		Name string `json:"name"`
	} `json:"source"`
}

// SerpAPI discovers candidates from SerpAPI's Google News engine.
type SerpAPI struct {
	client   *httpclient.Client
	apiKey   string
	locale   string
	country  string
}

func NewSerpAPI(client *httpclient.Client, apiKey, locale, country string) *SerpAPI {
	if locale == "" {
		locale = "en"
	}
	if country == "" {
		country = "us"
	}
	return &SerpAPI{client: client, apiKey: apiKey, locale: locale, country: country}
}

func (p *SerpAPI) Name() string { return "serpapi" }

// Discover issues one request per keyword in parallel, per spec §4.7.2
// (contrast with GNews's OR-joined batching).
func (p *SerpAPI) Discover(ctx context.Context, q Query) ([]model.Candidate, error) {
	if p.apiKey == "" || len(q.Keywords) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var out []model.Candidate

	for _, kw := range q.Keywords {
		kw := kw
		g.Go(func() error {
			candidates, err := p.discoverOne(gctx, kw.Text)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, candidates...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

func (p *SerpAPI) discoverOne(ctx context.Context, keyword string) ([]model.Candidate, error) {
	if keyword == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s?q=%s&engine=google_news&hl=%s&gl=%s&api_key=%s",
		serpAPIBaseURL, url.QueryEscape(keyword), url.QueryEscape(p.locale), url.QueryEscape(p.country), url.QueryEscape(p.apiKey))

	_, body, err := p.client.Get(ctx, reqURL, httpclient.ProfileAPI)
	if err != nil {
		return nil, fmt.Errorf("serpapi: %w", err)
	}

	var parsed serpAPIResponse
	if err := serpAPIJSON.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("serpapi: decode response: %w", err)
	}

	out := make([]model.Candidate, 0, len(parsed.NewsResults))
	for _, item := range parsed.NewsResults {
		if item.Title == "" || item.Link == "" {
			continue
		}
		dateResult := dateresolve.Resolve(item.Date, dateresolve.SourceFreeText)
		sourceName := item.Source.Name
		if sourceName == "" {
			sourceName = "SerpApi"
		}
		out = append(out, model.Candidate{
			Title:          item.Title,
			Teaser:         model.TruncateTeaser(item.Snippet),
			URL:            item.Link,
			PublishedAt:    dateResult.ParsedAt,
			DateConfidence: dateResult.Confidence,
			SourceName:     sourceName,
			ProviderTag:    "serpapi",
			MatchedKeyword: keyword,
			// Only RSS pubDates are treated as ground truth (spec §4.6).
			// SerpApi dates are resolved as free text (low confidence), and a
			// non-authoritative candidate with a low-confidence or missing
			// date does not survive a non-zero from_date cutoff.
			Authoritative: false,
		})
	}
	return out, nil
}
