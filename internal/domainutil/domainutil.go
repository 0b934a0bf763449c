// Package domainutil provides the URL and text normalization primitives
// shared by rate limiting, deduplication, and extraction.
package domainutil

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
)

// EffectiveTLDPlusOne returns the registrable domain (eTLD+1) for a URL or
// bare host, e.g. "nyheder.tv2.dk" -> "tv2.dk". Falls back to the last two
// dot-separated labels if the public suffix list can't resolve it.
func EffectiveTLDPlusOne(urlOrHost string) string {
	host := normalizeHost(urlOrHost)
	if host == "" {
		return "unknown"
	}

	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && etld1 != "" {
		return strings.ToLower(etld1)
	}

	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return strings.ToLower(strings.Join(labels[len(labels)-2:], "."))
	}
	return host
}

func normalizeHost(urlOrHost string) string {
	value := strings.ToLower(strings.TrimSpace(urlOrHost))
	if value == "" {
		return ""
	}

	if strings.Contains(value, "://") {
		if u, err := url.Parse(value); err == nil {
			value = u.Host
		}
	}

	if at := strings.LastIndex(value, "@"); at != -1 {
		value = value[at+1:]
	}
	if colon := strings.Index(value, ":"); colon != -1 {
		value = value[:colon]
	}
	value = strings.TrimPrefix(value, "www.")
	return value
}

// trackingParamPrefixes and trackingParamExact name the query parameters
// NormalizeURL strips regardless of value.
var trackingParamPrefixes = []string{"utm_"}
var trackingParamExact = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_eid": true,
	"ref":    true,
	"source": true,
}

// NormalizeURL lowercases the host, strips the default port, removes the
// fragment, drops tracking parameters, sorts the remaining query
// parameters, and strips a trailing slash from the path. Idempotent.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "/")
	}

	u.Host = strings.ToLower(u.Host)
	u.Host = stripDefaultPort(u.Host, u.Scheme)
	u.Fragment = ""
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if trackingParamExact[lower] || hasTrackingPrefix(lower) {
				q.Del(key)
			}
		}
		u.RawQuery = sortedQuery(q)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Scheme = strings.ToLower(u.Scheme)

	return u.String()
}

func hasTrackingPrefix(key string) bool {
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func stripDefaultPort(host, scheme string) string {
	suffix := ""
	switch scheme {
	case "http":
		suffix = ":80"
	case "https":
		suffix = ":443"
	default:
		return host
	}
	return strings.TrimSuffix(host, suffix)
}

func sortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		values := q[k]
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// CleanKeyword trims whitespace and collapses internal runs of whitespace.
// Returns "" if the keyword is empty after trimming.
func CleanKeyword(raw string) string {
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}

// stopWords covers the languages the source recipes commonly target.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "at": true,
	"det": true, "en": true, "og": true, "i": true, "på": true, "til": true,
	"der": true, "som": true, "med": true, "af": true,
}

// ContainsWord reports whether needle appears in haystack on word
// boundaries, case-insensitive: "art" matches "latest art show" but not
// "start" or "article". Falls back to a plain substring check if needle
// can't be compiled as a regexp (unbalanced input is treated literally via
// regexp.QuoteMeta, so this only triggers on a pathological needle).
func ContainsWord(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
	if err != nil {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}
	return re.MatchString(haystack)
}

// TokenizeForMatch lowercases text, splits on non-alphanumeric boundaries,
// and drops stop-words, returning the resulting token set.
func TokenizeForMatch(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tok := current.String()
		current.Reset()
		if stopWords[tok] {
			return
		}
		tokens[tok] = struct{}{}
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}
