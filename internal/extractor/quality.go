package extractor

import (
	"strings"
	"unicode"
)

const (
	minMeaningfulChars  = 80
	preferredChars      = 500
	qualityPassThreshold = 40
)

var boilerplateMarkers = []string{
	"cookie policy",
	"subscribe to continue",
	"enable javascript",
	"please enable cookies",
	"accept all cookies",
	"sign in to continue",
}

// scoreContent grades extracted content 0-100 per spec §4.5's quality
// gate: text length, text-to-link ratio, presence of title+date, absence
// of boilerplate markers.
func scoreContent(title, content, dateRaw string, linkCharCount, totalCharCount int) int {
	score := 0

	textLen := len([]rune(strings.TrimSpace(content)))
	switch {
	case textLen >= preferredChars:
		score += 50
	case textLen >= minMeaningfulChars:
		score += int(50 * float64(textLen-minMeaningfulChars) / float64(preferredChars-minMeaningfulChars))
	}

	if title != "" {
		score += 15
	}
	if dateRaw != "" {
		score += 15
	}

	score += 20 - linkDensityPenalty(linkCharCount, totalCharCount)

	lower := strings.ToLower(content)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			score -= 20
			break
		}
	}

	return clampScore(score)
}

// linkDensityPenalty returns 0-20: 0 when link text is a small share of
// the total text, rising as link text dominates (boilerplate nav/ad text).
func linkDensityPenalty(linkChars, totalChars int) int {
	if totalChars == 0 {
		return 20
	}
	ratio := float64(linkChars) / float64(totalChars)
	return int(ratio * 20)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func hasMeaningfulContent(content string) bool {
	return len([]rune(strings.TrimSpace(content))) >= minMeaningfulChars
}

// countLetters approximates "real text" for the link-density calculation,
// ignoring whitespace-only runs.
func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
