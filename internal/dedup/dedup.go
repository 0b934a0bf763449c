// Package dedup implements exact-URL and near-duplicate detection across
// scraping providers (spec §4.8).
package dedup

import (
	"regexp"
	"strings"
	"time"

	"mediawatch/internal/domainutil"
	"mediawatch/internal/model"
)

// aggregatorHosts are eTLD+1 values known to wrap many publishers under one
// host, e.g. Google News link redirects. Near-dup blocking cross-compares
// candidates on an aggregator host against candidates on any other host
// when their title signatures match (see SPEC_FULL's supplemented
// behaviors).
var aggregatorHosts = map[string]bool{
	"google.com": true,
}

var titleWordPattern = regexp.MustCompile(`[a-z0-9]+`)

// ExactURL groups candidates by normalize_url(url) and keeps the first
// occurrence of each group. Order-independent per spec §8 invariant 4,
// though input order determines which occurrence is "first".
func ExactURL(candidates []model.Candidate) []model.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]model.Candidate, 0, len(candidates))

	for _, c := range candidates {
		norm := domainutil.NormalizeURL(c.URL)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, c)
	}
	return out
}

// NearDuplicateConfig configures Stage-2 fuzzy dedup.
type NearDuplicateConfig struct {
	Threshold int // 0-100, default 92
	DayWindow int // default 2
}

// DefaultNearDuplicateConfig mirrors spec §6.2 defaults.
func DefaultNearDuplicateConfig() NearDuplicateConfig {
	return NearDuplicateConfig{Threshold: 92, DayWindow: 2}
}

const catchAllBlockLimit = 1000

// NearDuplicate removes near-duplicate candidates within blocks of
// (eTLD+1, date_bucket), keeping the candidate with higher date confidence
// (ties broken by longer teaser). Stable: first-seen order wins on ties.
// Returns the deduplicated slice and the count removed.
func NearDuplicate(candidates []model.Candidate, cfg NearDuplicateConfig) ([]model.Candidate, int) {
	if len(candidates) <= 1 {
		return candidates, 0
	}

	threshold := clamp(cfg.Threshold, 1, 100)
	dayWindow := cfg.DayWindow
	if dayWindow < 0 {
		dayWindow = 0
	}
	dayDelta := time.Duration(dayWindow) * 24 * time.Hour

	var kept []model.Candidate
	keptDomains := make([]string, 0, len(candidates))

	byDomainSignature := make(map[string][]int)
	bySignature := make(map[string][]int)
	catchAll := 0
	overflowWarned := false

	for _, c := range candidates {
		text := comparisonText(c)
		normText := normalizeTitle(text)
		domain := domainutil.EffectiveTLDPlusOne(c.URL)

		if normText == "" {
			if catchAll >= catchAllBlockLimit && !overflowWarned {
				overflowWarned = true
			}
			catchAll++
			kept = append(kept, c)
			keptDomains = append(keptDomains, domain)
			continue
		}

		signature := titleSignature(normText)
		domainKey := domain

		candidateIndices := make(map[int]bool)
		for _, idx := range byDomainSignature[domainKey] {
			candidateIndices[idx] = true
		}
		if aggregatorHosts[domain] {
			for _, idx := range bySignature[signature] {
				candidateIndices[idx] = true
			}
		} else {
			for _, idx := range bySignature[signature] {
				if aggregatorHosts[keptDomains[idx]] {
					candidateIndices[idx] = true
				}
			}
		}

		isDuplicate := false
		for idx := range candidateIndices {
			other := kept[idx]
			otherText := normalizeTitle(comparisonText(other))
			if otherText == "" {
				continue
			}
			if c.PublishedAt != nil && other.PublishedAt != nil {
				diff := c.PublishedAt.Sub(*other.PublishedAt)
				if diff < 0 {
					diff = -diff
				}
				if diff > dayDelta {
					continue
				}
			}

			if fuzzyScore(normText, otherText) >= float64(threshold) {
				isDuplicate = true
				if preferOver(c, other) {
					kept[idx] = c
					keptDomains[idx] = domain
				}
				break
			}
		}

		if isDuplicate {
			continue
		}

		kept = append(kept, c)
		keptDomains = append(keptDomains, domain)
		idx := len(kept) - 1
		byDomainSignature[domainKey] = append(byDomainSignature[domainKey], idx)
		bySignature[signature] = append(bySignature[signature], idx)
	}

	removed := len(candidates) - len(kept)
	return kept, removed
}

// preferOver reports whether incoming should replace existing when merged:
// higher date confidence wins; ties broken by longer teaser.
func preferOver(incoming, existing model.Candidate) bool {
	incomingRank := confidenceRank(incoming.DateConfidence)
	existingRank := confidenceRank(existing.DateConfidence)
	if incomingRank != existingRank {
		return incomingRank > existingRank
	}
	return len(incoming.Teaser) > len(existing.Teaser)
}

func confidenceRank(c model.DateConfidence) int {
	switch c {
	case model.ConfidenceHigh:
		return 3
	case model.ConfidenceMedium:
		return 2
	case model.ConfidenceLow:
		return 1
	default:
		return 0
	}
}

func comparisonText(c model.Candidate) string {
	title := strings.TrimSpace(c.Title)
	teaser := strings.TrimSpace(c.Teaser)
	if len(title) >= 20 {
		return title
	}
	if title != "" && teaser != "" {
		return title + " " + teaser
	}
	if title != "" {
		return title
	}
	return teaser
}

func normalizeTitle(text string) string {
	words := titleWordPattern.FindAllString(strings.ToLower(text), -1)
	return strings.Join(words, " ")
}

func titleSignature(normalizedTitle string) string {
	if normalizedTitle == "" {
		return ""
	}
	tokens := strings.Fields(normalizedTitle)
	if len(tokens) > 5 {
		tokens = tokens[:5]
	}
	return strings.Join(tokens, " ")
}

// fuzzyScore approximates rapidfuzz's token_set_ratio: it rewards shared
// tokens between two token sets regardless of order or repeated words,
// scaled 0-100. See DESIGN.md for why this is hand-rolled rather than a
// library import.
func fuzzyScore(a, b string) float64 {
	if a == b {
		return 100
	}
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := toSet(tokensA)
	setB := toSet(tokensB)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	if smaller == 0 {
		return 0
	}

	// token_set_ratio effectively measures how much of the smaller set is
	// covered by the intersection with the larger, which handles reordered
	// and partially-overlapping titles well.
	return 100 * float64(intersection) / float64(smaller)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
