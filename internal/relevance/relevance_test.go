package relevance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"mediawatch/internal/model"
)

type stubDoer struct {
	respond func(req *http.Request) (*http.Response, error)
	calls   int
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	return d.respond(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDisabledFilterPassesThrough(t *testing.T) {
	f := New(&stubDoer{}, "", "", nil)
	candidates := []model.Candidate{{Title: "a"}, {Title: "b"}}

	got := f.FilterCandidates(context.Background(), candidates, "Acme")
	if len(got) != 2 {
		t.Fatalf("expected passthrough, got %d", len(got))
	}
}

func TestFilterKeepsYesDropsNo(t *testing.T) {
	doer := &stubDoer{
		respond: func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			answer := "NO"
			if strings.Contains(string(body), "Relevant Article") {
				answer = "YES"
			}
			return jsonResponse(200, `{"choices":[{"message":{"content":"`+answer+`"}}]}`), nil
		},
	}
	f := New(doer, "test-key", "deepseek-chat", nil)

	candidates := []model.Candidate{
		{Title: "Relevant Article", Teaser: "about Acme", MatchedKeyword: "Acme"},
		{Title: "Unrelated sports recap", Teaser: "", MatchedKeyword: "Acme"},
	}

	got := f.FilterCandidates(context.Background(), candidates, "Acme")
	if len(got) != 1 || got[0].Title != "Relevant Article" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFilterFailsOpenOnTransportError(t *testing.T) {
	doer := &stubDoer{
		respond: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	f := New(doer, "test-key", "", nil)

	candidates := []model.Candidate{{Title: "Whatever", MatchedKeyword: "Acme"}}
	got := f.FilterCandidates(context.Background(), candidates, "Acme")
	if len(got) != 1 {
		t.Fatalf("expected fail-open keep, got %d results", len(got))
	}
}

func TestFilterFailsOpenOnNonOKStatus(t *testing.T) {
	doer := &stubDoer{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(500, `{}`), nil
		},
	}
	f := New(doer, "test-key", "", nil)

	candidates := []model.Candidate{{Title: "Whatever", MatchedKeyword: "Acme"}}
	got := f.FilterCandidates(context.Background(), candidates, "Acme")
	if len(got) != 1 {
		t.Fatalf("expected fail-open keep, got %d results", len(got))
	}
}

func TestFilterEmptyInputs(t *testing.T) {
	f := New(&stubDoer{}, "test-key", "", nil)

	if got := f.FilterCandidates(context.Background(), nil, "Acme"); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}
}
