package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"mediawatch/internal/dateresolve"
	"mediawatch/internal/domainutil"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/model"
	"mediawatch/internal/recipe"
)

// RSS discovers candidates from a source recipe's configured feed URLs.
// Every returned candidate is Authoritative, since feed pubDates are
// treated as ground truth (spec §4.1, §4.6).
type RSS struct {
	client  *httpclient.Client
	recipes *recipe.Store
	log     *slog.Logger
}

func NewRSS(client *httpclient.Client, recipes *recipe.Store, log *slog.Logger) *RSS {
	if log == nil {
		log = slog.Default()
	}
	return &RSS{client: client, recipes: recipes, log: log}
}

func (p *RSS) Name() string { return "rss" }

// Discover fetches every RSS-eligible recipe's feeds once per call and
// keeps items whose title or description contains any of the topic's
// keywords. RSS has no query parameter of its own; it discovers broadly
// and relies on keyword matching plus downstream topic scoring. Fetching
// once per topic (rather than once per keyword) avoids re-downloading the
// same feed for every keyword in the topic.
func (p *RSS) Discover(ctx context.Context, q Query) ([]model.Candidate, error) {
	keywords := lowerKeywords(q.Keywords)
	if len(keywords) == 0 {
		return nil, nil
	}

	recipes, err := p.recipes.ListForDiscovery(ctx, model.DiscoveryRSS)
	if err != nil {
		return nil, fmt.Errorf("rss: list recipes: %w", err)
	}

	var out []model.Candidate
	parser := gofeed.NewParser()

	for _, r := range recipes {
		for _, feedURL := range r.RSSURLs {
			_, body, err := p.client.Get(ctx, feedURL, httpclient.ProfileRSS)
			if err != nil {
				p.log.Warn("rss feed fetch failed", "url", feedURL, "error", err)
				continue
			}

			feed, err := parser.ParseString(string(body))
			if err != nil {
				p.log.Warn("rss feed parse failed", "url", feedURL, "error", err)
				continue
			}

			for _, item := range feed.Items {
				for _, keyword := range keywords {
					if !itemMatchesKeyword(item, keyword) {
						continue
					}
					out = append(out, candidateFromItem(item, keyword))
				}
			}
		}
	}

	return out, nil
}

func lowerKeywords(keywords []model.Keyword) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		text := strings.ToLower(strings.TrimSpace(kw.Text))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

func itemMatchesKeyword(item *gofeed.Item, keywordLower string) bool {
	haystack := strings.ToLower(item.Title + " " + item.Description)
	return strings.Contains(haystack, keywordLower)
}

func candidateFromItem(item *gofeed.Item, keyword string) model.Candidate {
	var publishedAt = item.PublishedParsed
	if publishedAt == nil {
		publishedAt = item.UpdatedParsed
	}
	dateResult := dateresolve.ResolveFeedTime(publishedAt)

	teaser := model.TruncateTeaser(strings.TrimSpace(item.Description))

	return model.Candidate{
		Title:          strings.TrimSpace(item.Title),
		Teaser:         teaser,
		URL:            item.Link,
		PublishedAt:    dateResult.ParsedAt,
		DateConfidence: dateResult.Confidence,
		SourceName:     domainutil.EffectiveTLDPlusOne(item.Link),
		ProviderTag:    "rss",
		MatchedKeyword: keyword,
		Authoritative:  true,
	}
}
