package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockTags are the elements considered when hunting for the densest text
// block on the page.
var blockTags = []string{"article", "section", "div", "main"}

// extractByReadability is a hand-rolled main-content heuristic that
// bestExtraction scores alongside the recipe and generic strategies on
// every page: it scores every
// block-level element by the ratio of paragraph text to link text and
// picks the highest-scoring one, mirroring the shape (not the exact
// algorithm) of Mozilla-style readability scoring. No such library exists
// among the retrieval pack's dependencies (see DESIGN.md), so this is a
// deliberate hand-rolled fallback, same as dedup.fuzzyScore.
func extractByReadability(doc *goquery.Document) extracted {
	var (
		bestNode  *goquery.Selection
		bestScore float64
	)

	doc.Find(strings.Join(blockTags, ", ")).Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if !hasMeaningfulContent(text) {
			return
		}

		paragraphChars := 0
		s.Find("p").Each(func(_ int, p *goquery.Selection) {
			paragraphChars += len(cleanText(p.Text()))
		})
		if paragraphChars == 0 {
			paragraphChars = len(text)
		}

		linkChars := 0
		s.Find("a").Each(func(_ int, a *goquery.Selection) {
			linkChars += len(cleanText(a.Text()))
		})

		score := float64(paragraphChars) / float64(linkChars+1)
		// Favor elements with more paragraph text outright, not just a
		// good ratio, so a short quote block doesn't beat the real body.
		score *= min(float64(paragraphChars), 3000) / 100

		if score > bestScore {
			bestScore = score
			bestNode = s
		}
	})

	var r extracted
	if bestNode == nil {
		return r
	}

	r.content = cleanText(bestNode.Text())
	if title := doc.Find("h1").First(); title.Length() > 0 {
		r.title = cleanText(title.Text())
	} else {
		r.title = cleanText(doc.Find("title").First().Text())
	}
	for _, sel := range GenericDateSelectors {
		if v := selectDate(doc, sel); v != "" {
			r.dateRaw = v
			break
		}
	}
	return r
}
