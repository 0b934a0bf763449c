package domainutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEffectiveTLDPlusOne(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare host with subdomain", in: "nyheder.tv2.dk", want: "tv2.dk"},
		{name: "full url", in: "https://www.reuters.com/business/lego-cuts-jobs", want: "reuters.com"},
		{name: "already registrable", in: "example.com", want: "example.com"},
		{name: "url with port", in: "http://localhost:8080/x", want: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveTLDPlusOne(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EffectiveTLDPlusOne(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tracking params and trailing slash",
			in:   "https://Ex.com/a/?utm_source=foo&b=2&a=1",
			want: "https://ex.com/a?a=1&b=2",
		},
		{
			name: "removes fragment",
			in:   "https://ex.com/a#section",
			want: "https://ex.com/a",
		},
		{
			name: "strips default https port",
			in:   "https://ex.com:443/a",
			want: "https://ex.com/a",
		},
		{
			name: "no query stays clean",
			in:   "https://ex.com/a/",
			want: "https://ex.com/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeURL(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeURL(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	urls := []string{
		"https://Ex.com/a/?utm_source=foo&b=2&a=1",
		"http://Sub.Example.org:80/path/?gclid=x&z=1",
	}
	for _, u := range urls {
		once := NormalizeURL(u)
		twice := NormalizeURL(once)
		if once != twice {
			t.Errorf("NormalizeURL not idempotent for %q: %q != %q", u, once, twice)
		}
	}
}

func TestCleanKeyword(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  rabat  ", "rabat"},
		{"black   friday", "black friday"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanKeyword(tt.in); got != tt.want {
			t.Errorf("CleanKeyword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenizeForMatch(t *testing.T) {
	got := TokenizeForMatch("The Lego Group cuts 500 jobs!")
	want := map[string]struct{}{
		"lego": {}, "group": {}, "cuts": {}, "500": {}, "jobs": {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TokenizeForMatch mismatch (-want +got):\n%s", diff)
	}
}
