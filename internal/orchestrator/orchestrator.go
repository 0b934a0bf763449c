// Package orchestrator fans candidate discovery out across providers and
// reduces the results to a deduplicated, relevance-filtered set (spec
// §4.1, §4.8, §4.9).
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mediawatch/internal/dateresolve"
	"mediawatch/internal/dedup"
	"mediawatch/internal/metrics"
	"mediawatch/internal/model"
	"mediawatch/internal/provider"
	"mediawatch/internal/relevance"
)

// Budgets bounds how much work a single run may do, per spec §4.1/§6.2.
type Budgets struct {
	MaxKeywordsPerRun  int
	MaxTotalURLsPerRun int
	RunBudget          time.Duration
}

// KeywordQuery pairs a keyword with the topic it belongs to and the topic's
// query template, for one fan-out unit.
type KeywordQuery struct {
	TopicID       int64
	Keyword       model.Keyword
	QueryTemplate string
}

// Orchestrator runs every enabled provider once per topic with that topic's
// full keyword list, then reduces each topic's combined candidate set.
type Orchestrator struct {
	providers   []provider.Provider
	dedupCfg    dedup.NearDuplicateConfig
	relevance   *relevance.Filter
	log         *slog.Logger
}

func New(providers []provider.Provider, dedupCfg dedup.NearDuplicateConfig, relevanceFilter *relevance.Filter, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{providers: providers, dedupCfg: dedupCfg, relevance: relevanceFilter, log: log}
}

// topicGroup collects every keyword belonging to one topic into a single
// fan-out unit, so a batch-capable provider (GNews) can OR-join them into
// as few requests as its API allows, per spec §4.7.1.
type topicGroup struct {
	topicID       int64
	queryTemplate string
	keywords      []model.Keyword
}

func groupByTopic(queries []KeywordQuery) []topicGroup {
	order := make([]int64, 0)
	byTopic := make(map[int64]*topicGroup)
	for _, q := range queries {
		g, ok := byTopic[q.TopicID]
		if !ok {
			g = &topicGroup{topicID: q.TopicID, queryTemplate: q.QueryTemplate}
			byTopic[q.TopicID] = g
			order = append(order, q.TopicID)
		}
		g.keywords = append(g.keywords, q.Keyword)
	}
	groups := make([]topicGroup, 0, len(order))
	for _, topicID := range order {
		groups = append(groups, *byTopic[topicID])
	}
	return groups
}

// TopicResult is one topic's deduplicated, relevance-filtered candidates.
type TopicResult struct {
	TopicID    int64
	Candidates []model.Candidate
}

// Run executes the full discovery pass for brandName across the given
// keyword queries, applying budgets and then the dedup/relevance
// reduction per topic (spec §4.8 dedup runs within a topic's candidate
// set, since uniqueness is scoped to (normalized_url, topic_id)).
func (o *Orchestrator) Run(ctx context.Context, brandName string, queries []KeywordQuery, fromDate time.Time, budgets Budgets) ([]TopicResult, error) {
	if budgets.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budgets.RunBudget)
		defer cancel()
	}

	limited := queries
	if budgets.MaxKeywordsPerRun > 0 && len(limited) > budgets.MaxKeywordsPerRun {
		dropped := len(limited) - budgets.MaxKeywordsPerRun
		metrics.ObserveGuardrailEvent("max_keywords_per_run", "orchestrator", "truncated", dropped)
		limited = limited[:budgets.MaxKeywordsPerRun]
	}

	groups := groupByTopic(limited)

	byTopic := make(map[int64][]model.Candidate)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		for _, p := range o.providers {
			p := p
			g.Go(func() error {
				start := time.Now()
				candidates, err := p.Discover(gctx, provider.Query{
					BrandName:     brandName,
					Keywords:      group.keywords,
					QueryTemplate: group.queryTemplate,
					FromDate:      fromDate,
				})
				duration := time.Since(start).Seconds()
				status := "success"
				if err != nil {
					status = "error"
					o.log.Warn("provider discovery failed", "provider", p.Name(), "topic_id", group.topicID, "error", err)
				}
				metrics.ObserveProviderRun(p.Name(), status, duration, len(candidates))
				if err != nil {
					return nil // a single provider failure never aborts the run
				}

				filtered := filterByCutoff(candidates, fromDate)

				mu.Lock()
				byTopic[group.topicID] = append(byTopic[group.topicID], filtered...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]TopicResult, 0, len(byTopic))
	remaining := budgets.MaxTotalURLsPerRun
	for topicID, candidates := range byTopic {
		candidates = o.reduce(ctx, brandName, candidates, budgets)
		if budgets.MaxTotalURLsPerRun > 0 {
			if len(candidates) > remaining {
				metrics.ObserveGuardrailEvent("max_total_urls_per_run", "orchestrator", "truncated", len(candidates)-remaining)
				candidates = candidates[:remaining]
			}
			remaining -= len(candidates)
		}
		results = append(results, TopicResult{TopicID: topicID, Candidates: candidates})
	}
	return results, nil
}

// reduce applies the exact-URL pass, near-duplicate pass, the optional
// relevance filter, and the total-URL guardrail, in that order (spec
// §4.8-§4.9).
func (o *Orchestrator) reduce(ctx context.Context, brandName string, candidates []model.Candidate, budgets Budgets) []model.Candidate {
	before := len(candidates)
	candidates = dedup.ExactURL(candidates)
	metrics.ObserveDuplicatesRemoved("exact_url", before-len(candidates))

	before = len(candidates)
	candidates, removed := dedup.NearDuplicate(candidates, o.dedupCfg)
	metrics.ObserveDuplicatesRemoved("near_duplicate", removed)
	_ = before

	if o.relevance != nil {
		candidates = o.relevance.FilterCandidates(ctx, candidates, brandName)
	}

	if budgets.MaxTotalURLsPerRun > 0 && len(candidates) > budgets.MaxTotalURLsPerRun {
		dropped := len(candidates) - budgets.MaxTotalURLsPerRun
		metrics.ObserveGuardrailEvent("max_total_urls_per_run", "orchestrator", "truncated", dropped)
		candidates = candidates[:budgets.MaxTotalURLsPerRun]
	}

	sortCandidates(candidates)
	return candidates
}

// sortCandidates orders by (published_at desc NULLS LAST, date_confidence
// desc, title asc), per spec §4.10.
func sortCandidates(candidates []model.Candidate) {
	rank := map[model.DateConfidence]int{
		model.ConfidenceHigh:   3,
		model.ConfidenceMedium: 2,
		model.ConfidenceLow:    1,
		model.ConfidenceNone:   0,
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if (a.PublishedAt == nil) != (b.PublishedAt == nil) {
			return a.PublishedAt != nil
		}
		if a.PublishedAt != nil && b.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.After(*b.PublishedAt)
		}
		if rank[a.DateConfidence] != rank[b.DateConfidence] {
			return rank[a.DateConfidence] > rank[b.DateConfidence]
		}
		return a.Title < b.Title
	})
}

// filterByCutoff applies the run's from_date window (spec §4.6): a
// candidate survives if its resolved date is on/after fromDate (a
// low-confidence date counts only for an authoritative source), or it has
// no usable date but comes from an authoritative source.
func filterByCutoff(candidates []model.Candidate, fromDate time.Time) []model.Candidate {
	if fromDate.IsZero() {
		return candidates
	}
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		result := dateresolve.Result{ParsedAt: c.PublishedAt, Confidence: c.DateConfidence}
		if dateresolve.WithinCutoff(result, fromDate, c.Authoritative) {
			out = append(out, c)
		}
	}
	return out
}
