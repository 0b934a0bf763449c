package dedup

import (
	"time"

	"mediawatch/internal/domainutil"
	"mediawatch/internal/model"
)

// historicalEntry is the comparison shape built from a previously
// persisted Mention.
type historicalEntry struct {
	text        string
	publishedAt *time.Time
	domain      string
}

// AgainstHistory filters candidates against a window of recently persisted
// mentions for the same brand, using the same blocking+fuzzy model as
// NearDuplicate. This implements the supplemented "historical fuzzy
// filtering" behavior described in SPEC_FULL.md, distinct from the exact
// (normalized_url, topic_id) check performed at insert time.
func AgainstHistory(candidates []model.Candidate, historical []model.Mention, cfg NearDuplicateConfig) ([]model.Candidate, int) {
	if len(candidates) == 0 || len(historical) == 0 {
		return candidates, 0
	}

	threshold := clamp(cfg.Threshold, 1, 100)
	dayWindow := cfg.DayWindow
	if dayWindow < 0 {
		dayWindow = 0
	}
	dayDelta := time.Duration(dayWindow) * 24 * time.Hour

	var entries []historicalEntry
	byDomainSignature := make(map[string][]int)
	bySignature := make(map[string][]int)

	for _, m := range historical {
		text := normalizeTitle(historicalComparisonText(m))
		if text == "" {
			continue
		}
		domain := domainutil.EffectiveTLDPlusOne(m.RawURL)
		signature := titleSignature(text)
		entries = append(entries, historicalEntry{text: text, publishedAt: m.PublishedAt, domain: domain})
		idx := len(entries) - 1
		byDomainSignature[domain] = append(byDomainSignature[domain], idx)
		bySignature[signature] = append(bySignature[signature], idx)
	}

	if len(entries) == 0 {
		return candidates, 0
	}

	filtered := make([]model.Candidate, 0, len(candidates))
	removed := 0

	for _, c := range candidates {
		text := normalizeTitle(comparisonText(c))
		if text == "" {
			filtered = append(filtered, c)
			continue
		}

		domain := domainutil.EffectiveTLDPlusOne(c.URL)
		signature := titleSignature(text)

		candidateIndices := make(map[int]bool)
		for _, idx := range byDomainSignature[domain] {
			candidateIndices[idx] = true
		}
		if aggregatorHosts[domain] {
			for _, idx := range bySignature[signature] {
				candidateIndices[idx] = true
			}
		} else {
			for _, idx := range bySignature[signature] {
				if aggregatorHosts[entries[idx].domain] {
					candidateIndices[idx] = true
				}
			}
		}

		isDuplicate := false
		for idx := range candidateIndices {
			entry := entries[idx]
			if c.PublishedAt != nil && entry.publishedAt != nil {
				diff := c.PublishedAt.Sub(*entry.publishedAt)
				if diff < 0 {
					diff = -diff
				}
				if diff > dayDelta {
					continue
				}
			}
			if fuzzyScore(text, entry.text) >= float64(threshold) {
				isDuplicate = true
				break
			}
		}

		if isDuplicate {
			removed++
			continue
		}
		filtered = append(filtered, c)
	}

	return filtered, removed
}

func historicalComparisonText(m model.Mention) string {
	if len(m.Title) >= 20 {
		return m.Title
	}
	if m.Title != "" && m.Teaser != "" {
		return m.Title + " " + m.Teaser
	}
	if m.Title != "" {
		return m.Title
	}
	return m.Teaser
}
