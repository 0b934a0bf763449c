// Package extractor turns a candidate article URL into normalized title,
// content, and publication-date fields, per spec §4.5.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediawatch/internal/dateresolve"
	"mediawatch/internal/domainutil"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/metrics"
	"mediawatch/internal/model"
)

const maxContentBytes = 50_000

// Strategy names an extraction technique, for logging and metrics.
type Strategy string

const (
	StrategyRecipe      Strategy = "recipe_selectors"
	StrategyGeneric     Strategy = "generic_selectors"
	StrategyReadability Strategy = "readability"
	StrategyNone        Strategy = "none"
)

// Transport fetches the rendered or raw HTML for a URL. Only HTTPTransport
// is wired to a concrete implementation; see DESIGN.md for why the
// browser-based transports named in spec §4.5 stop at this interface.
type Transport interface {
	Name() string
	Fetch(ctx context.Context, url string) (html string, err error)
}

// ErrTransportUnavailable is returned by a Transport that has no concrete
// backing implementation in this build.
var ErrTransportUnavailable = fmt.Errorf("transport unavailable")

// HTTPTransport fetches plain HTTP responses via the shared retrying client.
// It never executes JavaScript, so pages that only render content
// client-side fall through to the quality gate and score low.
type HTTPTransport struct {
	client *httpclient.Client
}

func NewHTTPTransport(client *httpclient.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

const httpTransportName = "plain_http"

func (t *HTTPTransport) Name() string { return httpTransportName }

func (t *HTTPTransport) Fetch(ctx context.Context, url string) (string, error) {
	_, body, err := t.client.Get(ctx, url, httpclient.ProfileHTML)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// unavailableTransport represents a strategy named by spec §4.5 with no
// library available in this build (persistent browser session, per-URL
// browser instance, fast headless fetch — see DESIGN.md). It always
// declines immediately so the chain falls through to HTTPTransport.
type unavailableTransport struct{ name string }

func (t unavailableTransport) Name() string { return t.name }

func (t unavailableTransport) Fetch(context.Context, string) (string, error) {
	return "", ErrTransportUnavailable
}

// PersistentBrowserTransport, PerURLBrowserTransport, and
// FastHeadlessTransport are the named slots for spec §4.5's steps 1-3.
// See DESIGN.md for why they are architecturally present but unimplemented.
var (
	PersistentBrowserTransport Transport = unavailableTransport{name: "persistent_browser"}
	PerURLBrowserTransport     Transport = unavailableTransport{name: "per_url_browser"}
	FastHeadlessTransport      Transport = unavailableTransport{name: "fast_headless"}
)

// Extraction is the normalized outcome of Extract.
type Extraction struct {
	Title          string
	Content        string
	ContentTeaser  string
	DateRaw        string
	DateResult     dateresolve.Result
	StrategyUsed   Strategy
	TransportUsed  string
}

// Extractor runs the transport chain and, for each fetched HTML document,
// the selector/readability strategy chain, applying the quality gate from
// spec §4.5.
type Extractor struct {
	transports []Transport
	log        *slog.Logger
}

// New builds an Extractor. transports is tried in order for each URL;
// callers typically pass [PersistentBrowserTransport, PerURLBrowserTransport,
// FastHeadlessTransport, httpTransport] to match the spec's documented
// chain, with only the last one able to actually produce HTML in this build.
func New(transports []Transport, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{transports: transports, log: log}
}

// Extract fetches url via the transport chain and runs the content-strategy
// chain against the first HTML a transport returns, honoring the quality
// gate (score >= 40) and the tie-break order recipe > readability > generic
// from spec §4.5.
func (e *Extractor) Extract(ctx context.Context, url string, recipe *model.SourceRecipe) (Extraction, error) {
	var (
		html            string
		transportUsed   string
		fetchErr        error
		fellThroughFrom bool
	)

	for _, t := range e.transports {
		if t == nil {
			continue
		}
		h, err := t.Fetch(ctx, url)
		if err != nil {
			if t.Name() != httpTransportName {
				fellThroughFrom = true
			}
			fetchErr = err
			continue
		}
		html = h
		transportUsed = t.Name()
		break
	}

	fallbackResult := "failed"
	if fellThroughFrom {
		defer func() {
			metrics.ObservePlaywrightFallback(domainutil.EffectiveTLDPlusOne(url), fallbackResult)
		}()
	}

	if html == "" {
		if fetchErr == nil {
			fetchErr = fmt.Errorf("extractor: no transport produced content")
		}
		return Extraction{StrategyUsed: StrategyNone}, fetchErr
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{StrategyUsed: StrategyNone}, fmt.Errorf("extractor: parse html: %w", err)
	}

	best, bestScore, bestStrategy := e.bestExtraction(doc, recipe)
	if bestScore < qualityPassThreshold {
		e.log.Debug("extraction below quality threshold", "url", url, "score", bestScore, "transport", transportUsed)
		return Extraction{StrategyUsed: StrategyNone, TransportUsed: transportUsed}, fmt.Errorf("extractor: no strategy met the quality threshold (best=%d)", bestScore)
	}

	dateSource := dateresolve.SourceSelector
	dateResult := dateresolve.Resolve(best.dateRaw, dateSource)

	content := best.content
	if len(content) > maxContentBytes {
		content = content[:maxContentBytes]
	}

	if transportUsed == httpTransportName {
		fallbackResult = "extracted"
	}
	return Extraction{
		Title:         best.title,
		Content:       content,
		ContentTeaser: model.TruncateTeaser(content),
		DateRaw:       best.dateRaw,
		DateResult:    dateResult,
		StrategyUsed:  bestStrategy,
		TransportUsed: transportUsed,
	}, nil
}

type extracted struct {
	title   string
	content string
	dateRaw string
}

// bestExtraction runs every applicable strategy against the parsed
// document and returns the winner: the highest-scoring strategy that
// clears the quality gate, with recipe > readability > generic breaking
// ties among strategies that score equally (spec §4.5).
func (e *Extractor) bestExtraction(doc *goquery.Document, recipe *model.SourceRecipe) (extracted, int, Strategy) {
	type attempt struct {
		strategy Strategy
		result   extracted
		score    int
	}

	var attempts []attempt

	if recipe != nil && (recipe.TitleSelector != "" || recipe.ContentSelector != "") {
		r := extractBySelectors(doc, recipe.TitleSelector, recipe.ContentSelector, recipe.DateSelector)
		attempts = append(attempts, attempt{StrategyRecipe, r, scoreExtracted(doc, r)})
	}

	readabilityResult := extractByReadability(doc)
	attempts = append(attempts, attempt{StrategyReadability, readabilityResult, scoreExtracted(doc, readabilityResult)})

	genericResult := extractByGenericSelectors(doc)
	attempts = append(attempts, attempt{StrategyGeneric, genericResult, scoreExtracted(doc, genericResult)})

	preference := map[Strategy]int{StrategyRecipe: 0, StrategyReadability: 1, StrategyGeneric: 2}

	bestIdx := -1
	for i, a := range attempts {
		if a.score < qualityPassThreshold {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		best := attempts[bestIdx]
		if a.score > best.score || (a.score == best.score && preference[a.strategy] < preference[best.strategy]) {
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		// Report the highest raw score even though it failed the gate, so
		// callers can log why extraction was rejected.
		top := attempts[0]
		for _, a := range attempts[1:] {
			if a.score > top.score {
				top = a
			}
		}
		return top.result, top.score, StrategyNone
	}

	return attempts[bestIdx].result, attempts[bestIdx].score, attempts[bestIdx].strategy
}

func scoreExtracted(doc *goquery.Document, r extracted) int {
	totalChars := countLetters(doc.Text())
	linkChars := 0
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		linkChars += countLetters(s.Text())
	})
	return scoreContent(r.title, r.content, r.dateRaw, linkChars, totalChars)
}

func extractBySelectors(doc *goquery.Document, titleSel, contentSel, dateSel string) extracted {
	var r extracted
	if titleSel != "" {
		r.title = cleanText(doc.Find(titleSel).First().Text())
	}
	if contentSel != "" {
		r.content = cleanText(doc.Find(contentSel).Text())
	}
	if dateSel != "" {
		r.dateRaw = selectDate(doc, dateSel)
	}
	return r
}

func extractByGenericSelectors(doc *goquery.Document) extracted {
	var r extracted
	for _, sel := range GenericTitleSelectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			r.title = text
			break
		}
	}
	for _, sel := range GenericContentSelectors {
		if text := cleanText(doc.Find(sel).Text()); text != "" {
			r.content = text
			break
		}
	}
	for _, sel := range GenericDateSelectors {
		if text := selectDate(doc, sel); text != "" {
			r.dateRaw = text
			break
		}
	}
	return r
}

func selectDate(doc *goquery.Document, sel string) string {
	node := doc.Find(sel).First()
	if node.Length() == 0 {
		return ""
	}
	if v, ok := node.Attr("datetime"); ok && v != "" {
		return v
	}
	if v, ok := node.Attr("content"); ok && v != "" {
		return v
	}
	return cleanText(node.Text())
}

func cleanText(s string) string {
	fields := strings.Fields(s)
	return strings.TrimSpace(strings.Join(fields, " "))
}
