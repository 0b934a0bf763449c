package rategovernor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediawatch/internal/httpclient"
)

type stubDoer struct {
	calls int
	resp  *http.Response
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.calls++
	return s.resp, nil
}

func TestGovernedDoerFailsFastOnOpenCircuit(t *testing.T) {
	g := New(Config{HTMLRPS: 1000, APIRPS: 1000, RSSRPS: 1000, CircuitThreshold: 1, CircuitCooldown: time.Hour})
	g.RecordExtractionResult("example.com", false)
	g.RecordExtractionResult("example.com", false)

	inner := &stubDoer{resp: httptest.NewRecorder().Result()}
	doer := NewGovernedDoer(inner, g, httpclient.ProfileHTML)

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	_, err := doer.Do(req)
	if err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("expected inner Doer not to be called, got %d calls", inner.calls)
	}
}

func TestGovernedDoerCallsInnerWhenAllowed(t *testing.T) {
	g := New(DefaultConfig())
	inner := &stubDoer{resp: httptest.NewRecorder().Result()}
	doer := NewGovernedDoer(inner, g, httpclient.ProfileHTML)

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/a", nil)
	if _, err := doer.Do(req); err != nil {
		t.Fatalf("do: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}
