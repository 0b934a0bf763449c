// Package relevance implements the optional, fail-open LLM-scored
// keep/drop filter described in spec §4.9.
package relevance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"mediawatch/internal/model"
)

const (
	apiURL         = "https://api.deepseek.com/v1/chat/completions"
	requestTimeout = 15 * time.Second
	maxArticleRune  = 600 // ~300 input tokens, per spec §4.9
	maxOutputTokens = 5
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Doer performs a single HTTP request. Satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Filter scores candidates for relevance against their matched keyword and
// brand context, failing open (keep) on any API error, timeout, or missing
// credential.
type Filter struct {
	doer   Doer
	apiKey string
	model  string
	log    *slog.Logger
}

// New builds a Filter. apiKey empty disables the filter entirely (caller
// should check Enabled before invoking Keep).
func New(doer Doer, apiKey, modelName string, log *slog.Logger) *Filter {
	if modelName == "" {
		modelName = "deepseek-chat"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Filter{doer: doer, apiKey: apiKey, model: modelName, log: log}
}

// Enabled reports whether a credential is configured.
func (f *Filter) Enabled() bool {
	return f != nil && f.apiKey != ""
}

// FilterCandidates evaluates every candidate in parallel against the given
// brand name and that candidate's matched keyword, keeping only those judged
// relevant. If the filter is disabled, or the input/keyword set is empty,
// candidates pass through unchanged.
func (f *Filter) FilterCandidates(ctx context.Context, candidates []model.Candidate, brandName string) []model.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	if !f.Enabled() {
		return candidates
	}

	keep := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)

	for i := range candidates {
		i := i
		g.Go(func() error {
			keep[i] = f.checkOne(gctx, candidates[i], brandName)
			return nil
		})
	}
	// errors from checkOne are absorbed (fail-open); Wait only propagates
	// ctx cancellation, which never happens since checkOne never returns an
	// error.
	_ = g.Wait()

	out := make([]model.Candidate, 0, len(candidates))
	dropped := 0
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		f.log.Info("relevance filter dropped candidates", "dropped", dropped, "kept", len(out))
	}
	return out
}

func (f *Filter) checkOne(ctx context.Context, c model.Candidate, brandName string) bool {
	text := strings.TrimSpace(c.Title + ". " + c.Teaser)
	if text == "" {
		return true
	}
	if len([]rune(text)) > maxArticleRune {
		text = string([]rune(text)[:maxArticleRune])
	}

	topicContext := buildContext(brandName, c.MatchedKeyword)
	if topicContext == "" {
		return true
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	answer, err := f.ask(reqCtx, text, topicContext)
	if err != nil {
		f.log.Warn("relevance check failed, defaulting to keep", "error", err)
		return true
	}
	return strings.Contains(strings.ToUpper(answer), "YES")
}

func buildContext(brandName, keyword string) string {
	parts := make([]string, 0, 2)
	if brandName != "" {
		parts = append(parts, brandName)
	}
	if keyword != "" {
		parts = append(parts, keyword)
	}
	return strings.Join(parts, ", ")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (f *Filter) ask(ctx context.Context, article, topicContext string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a strict media analyst. Is the following article PRIMARILY about these topics: '%s'?\n\n"+
			"Article: '%s'\n\n"+
			"Rules:\n"+
			"- YES only if the article's main subject directly concerns the topics above\n"+
			"- NO if the topics appear only in sidebars, related links, ads, or as brief passing references\n"+
			"- NO if the article is primarily about something unrelated\n"+
			"- When in doubt, reply NO\n\n"+
			"Reply ONLY with YES or NO.", topicContext, article)

	body, err := json.Marshal(chatRequest{
		Model: f.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a strict relevance classifier. Reply ONLY with YES or NO. Default to NO when uncertain."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxOutputTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.doer.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("relevance API status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("relevance API returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
