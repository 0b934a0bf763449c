// Package recipeanalyzer derives a Source Recipe for a new domain from a
// sample article page and its homepage, per spec §4.14: it probes the
// extractor's generic selector candidates against the sample page, scans
// the homepage for a site-search form, and verifies the guess with a live
// test query before the caller persists it via internal/recipe.
package recipeanalyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"mediawatch/internal/extractor"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/model"
	"mediawatch/internal/recipe"
)

// Confidence mirrors the three-tier rating the original analyzer reports
// alongside its guess, so an operator reviewing a derived recipe knows how
// much to trust it before it starts driving live scrapes.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	minTitleRunes   = 10
	minContentRunes = 50
)

var yearPattern = regexp.MustCompile(`20[0-9]{2}`)

// searchParamNames are the query-string keys a site-search form commonly
// uses, tried in this order when a form has more than one text input.
var searchParamNames = []string{"q", "s", "search", "query", "term", "keyword"}

// blacklistedPathSubstrings marks links that are never sample articles:
// login walls, subscription pages, tag/category index pages, and media
// players. Matched against the full lowercased URL.
var blacklistedPathSubstrings = []string{
	"login", "signin", "subscribe", "subscription", "account",
	"/tag/", "/tags/", "/category/", "/categories/", "/topic/",
	"/author/", "/video/", "/videos/", "/podcast/", "/gallery/",
	".pdf", "/search", "/newsletter",
}

// Result is one domain's derived recipe guess, before it is persisted.
type Result struct {
	Domain           string
	TitleSelector    string
	ContentSelector  string
	DateSelector     string
	SearchURLPattern string
	Confidence       Confidence
}

// Analyzer fetches sample pages and tests selector candidates against them.
type Analyzer struct {
	client *httpclient.Client
	log    *slog.Logger
}

// New builds an Analyzer. client is expected to be configured with the
// "html" profile's retry/timeout behavior, the same as any other page fetch
// in this codebase.
func New(client *httpclient.Client, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{client: client, log: log}
}

// FindSampleArticleURL scans a homepage for a link that looks like an
// article rather than navigation chrome, for callers that don't already
// have a known-good sample URL. It returns the first link whose path is
// long enough to be a slug and doesn't match a blacklisted section.
func (a *Analyzer) FindSampleArticleURL(homepageHTML, domain string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(homepageHTML))
	if err != nil {
		return "", false
	}
	base := &url.URL{Scheme: "https", Host: domain}

	found := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		resolved, err := resolveURL(base, href)
		if err != nil {
			return true
		}
		if isLikelyArticleURL(resolved, domain) {
			found = resolved
			return false
		}
		return true
	})
	return found, found != ""
}

func isLikelyArticleURL(rawURL, domain string) bool {
	lower := strings.ToLower(rawURL)
	for _, bad := range blacklistedPathSubstrings {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	target := strings.TrimPrefix(strings.ToLower(domain), "www.")
	if !strings.HasSuffix(host, target) {
		return false
	}
	return len(parsed.Path) >= 30
}

// Analyze fetches the sample article and homepage and returns a selector
// and search-pattern guess, without persisting anything.
func (a *Analyzer) Analyze(ctx context.Context, domain, sampleArticleURL string) (Result, error) {
	_, articleBody, err := a.client.Get(ctx, sampleArticleURL, httpclient.ProfileHTML)
	if err != nil {
		return Result{}, fmt.Errorf("fetch sample article: %w", err)
	}
	articleDoc, err := goquery.NewDocumentFromReader(strings.NewReader(string(articleBody)))
	if err != nil {
		return Result{}, fmt.Errorf("parse sample article: %w", err)
	}

	homepageURL := "https://" + domain + "/"
	_, homepageBody, err := a.client.Get(ctx, homepageURL, httpclient.ProfileHTML)
	if err != nil {
		a.log.Warn("fetch homepage failed, skipping search pattern detection", "domain", domain, "error", err)
		homepageBody = nil
	}

	result := Result{Domain: domain}
	validated := 0

	if sel, text := pickSelector(articleDoc, extractor.GenericTitleSelectors, isMeta); sel != "" && validTitle(text) {
		result.TitleSelector = sel
		validated++
	}
	if sel, text := pickSelector(articleDoc, extractor.GenericContentSelectors, isMeta); sel != "" && validContent(text) {
		result.ContentSelector = sel
		validated++
	}
	if sel, text := pickDateSelector(articleDoc, extractor.GenericDateSelectors); sel != "" && validDate(text) {
		result.DateSelector = sel
		validated++
	}

	if len(homepageBody) > 0 {
		homepageDoc, err := goquery.NewDocumentFromReader(strings.NewReader(string(homepageBody)))
		if err == nil {
			if pattern, ok := detectSearchPattern(homepageDoc, homepageURL); ok {
				result.SearchURLPattern = pattern
				validated++
			}
		}
	}

	switch {
	case validated >= 3:
		result.Confidence = ConfidenceHigh
	case validated >= 2:
		result.Confidence = ConfidenceMedium
	default:
		result.Confidence = ConfidenceLow
	}

	return result, nil
}

// VerifySearchPattern runs a live test query against a derived
// search_url_pattern and reports whether the response looks like a real
// results page (reachable, non-empty body) rather than an error or empty
// shell. testKeyword should be a common word likely to appear somewhere on
// the site, e.g. "news".
func (a *Analyzer) VerifySearchPattern(ctx context.Context, pattern, testKeyword string) bool {
	if !strings.Contains(pattern, "{keyword}") {
		return false
	}
	testURL := strings.ReplaceAll(pattern, "{keyword}", url.QueryEscape(testKeyword))
	_, body, err := a.client.Get(ctx, testURL, httpclient.ProfileHTML)
	if err != nil {
		a.log.Debug("search pattern verification failed", "url", testURL, "error", err)
		return false
	}
	return len(body) > 500
}

// AnalyzeAndUpsert runs Analyze, optionally verifies the search pattern
// against a live query, and persists the result via recipes.Upsert. It
// returns the recipe it wrote.
func (a *Analyzer) AnalyzeAndUpsert(ctx context.Context, recipes *recipe.Store, domain, sampleArticleURL, testKeyword string) (model.SourceRecipe, error) {
	result, err := a.Analyze(ctx, domain, sampleArticleURL)
	if err != nil {
		return model.SourceRecipe{}, err
	}

	discoveryType := model.DiscoveryType("")
	if result.SearchURLPattern != "" {
		if testKeyword == "" {
			testKeyword = "news"
		}
		if a.VerifySearchPattern(ctx, result.SearchURLPattern, testKeyword) {
			discoveryType = model.DiscoverySiteSearch
		} else {
			a.log.Warn("derived search pattern failed live verification, dropping it", "domain", domain, "pattern", result.SearchURLPattern)
			result.SearchURLPattern = ""
		}
	}

	r := model.SourceRecipe{
		Domain:           domain,
		SearchURLPattern: result.SearchURLPattern,
		TitleSelector:    result.TitleSelector,
		ContentSelector:  result.ContentSelector,
		DateSelector:     result.DateSelector,
		DiscoveryType:    discoveryType,
	}
	if err := recipes.Upsert(ctx, r); err != nil {
		return model.SourceRecipe{}, fmt.Errorf("upsert derived recipe: %w", err)
	}
	return r, nil
}

func pickSelector(doc *goquery.Document, candidates []string, metaCheck func(*goquery.Selection) (string, bool)) (string, string) {
	for _, sel := range candidates {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text, ok := metaCheck(node); ok {
			if text = cleanText(text); text != "" {
				return sel, text
			}
			continue
		}
		if text := cleanText(node.Text()); text != "" {
			return sel, text
		}
	}
	return "", ""
}

func pickDateSelector(doc *goquery.Document, candidates []string) (string, string) {
	for _, sel := range candidates {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("datetime"); ok && v != "" {
			return sel, v
		}
		if v, ok := node.Attr("content"); ok && v != "" {
			return sel, v
		}
		if text := cleanText(node.Text()); text != "" {
			return sel, text
		}
	}
	return "", ""
}

func isMeta(node *goquery.Selection) (string, bool) {
	if goquery.NodeName(node) != "meta" {
		return "", false
	}
	v, _ := node.Attr("content")
	return v, true
}

func validTitle(text string) bool   { return utf8.RuneCountInString(text) >= minTitleRunes }
func validContent(text string) bool { return utf8.RuneCountInString(text) >= minContentRunes }
func validDate(text string) bool    { return yearPattern.MatchString(text) }

func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// detectSearchPattern scans homepage <form> elements for a text input whose
// name looks like a search query field, building a {keyword}-templated URL
// from the form's action. It's a heuristic stand-in for the LLM-based
// detection the original analyzer uses — no HTML-to-LLM client exists
// anywhere in the retrieval pack to ground a prompt-based version on, so
// this scans the DOM directly instead, same as the title/content/date
// selector candidates above.
func detectSearchPattern(doc *goquery.Document, baseURL string) (string, bool) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}

	pattern := ""
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		action, _ := form.Attr("action")
		inputName := ""
		form.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
			name, _ := input.Attr("name")
			typ, _ := input.Attr("type")
			if typ == "hidden" {
				return true
			}
			for _, candidate := range searchParamNames {
				if strings.EqualFold(name, candidate) {
					inputName = name
					return false
				}
			}
			return true
		})
		if inputName == "" {
			return true
		}
		resolved, err := resolveURL(base, action)
		if err != nil {
			return true
		}
		pattern = appendQueryTemplate(resolved, inputName)
		return false
	})
	if pattern != "" {
		return pattern, true
	}

	// Fall back to scanning anchor hrefs for an existing "?q=..." style
	// search link, e.g. a "Search" nav item pointing at a live results page.
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href == "" {
			return true
		}
		resolved, err := resolveURL(base, href)
		if err != nil {
			return true
		}
		parsed, err := url.Parse(resolved)
		if err != nil {
			return true
		}
		query := parsed.Query()
		for _, candidate := range searchParamNames {
			if query.Get(candidate) != "" {
				query.Set(candidate, "{keyword}")
				parsed.RawQuery = query.Encode()
				pattern = strings.ReplaceAll(parsed.String(), "%7Bkeyword%7D", "{keyword}")
				return false
			}
		}
		return true
	})
	return pattern, pattern != ""
}

func appendQueryTemplate(actionURL, paramName string) string {
	parsed, err := url.Parse(actionURL)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	query.Set(paramName, "{keyword}")
	parsed.RawQuery = query.Encode()
	return strings.ReplaceAll(parsed.String(), "%7Bkeyword%7D", "{keyword}")
}

func resolveURL(base *url.URL, ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(parsed).String(), nil
}
