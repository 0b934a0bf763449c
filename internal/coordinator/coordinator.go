// Package coordinator runs one brand's scrape: lock acquisition, query
// construction, topic scoring, batch persistence, and guaranteed lock
// release (spec §4.11).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"mediawatch/internal/dedup"
	"mediawatch/internal/domainutil"
	"mediawatch/internal/metrics"
	"mediawatch/internal/model"
	"mediawatch/internal/orchestrator"
	"mediawatch/internal/store"
)

// StaleLockWindow is how long a brand's in-progress lock is honored before
// another run is allowed to reclaim it (spec §4.11 step 1).
const StaleLockWindow = 180 * time.Minute

const (
	titleMatchWeight       = 2
	teaserMatchWeight      = 1
	longKeywordBonus       = 1
	longKeywordRuneMinimum = 8

	// historyWindow bounds how far back ListRecentMentions looks for the
	// supplemented historical fuzzy-dedup pass.
	historyWindow = 7 * 24 * time.Hour
)

// Trigger identifies who started a run, for logging.
type Trigger string

const (
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
)

// ErrLocked is returned when the brand is already being scraped.
var ErrLocked = store.ErrLocked

// Coordinator owns one brand's end-to-end scrape run.
type Coordinator struct {
	store        store.Store
	orchestrator *orchestrator.Orchestrator
	dedupCfg     dedup.NearDuplicateConfig
	log          *slog.Logger

	nowFunc func() time.Time
}

func New(st store.Store, orch *orchestrator.Orchestrator, dedupCfg dedup.NearDuplicateConfig, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: st, orchestrator: orch, dedupCfg: dedupCfg, log: log, nowFunc: time.Now}
}

// pendingMention pairs a built-but-not-yet-inserted mention with the
// keyword-match metadata needed to link it after insert assigns its ID.
type pendingMention struct {
	mention   *model.Mention
	keywordID int64
	matchedIn model.MatchedIn
	score     int
}

// Run executes the full per-brand scrape sequence described in spec §4.11,
// returning the generated run id and the number of mentions newly
// persisted. The lock is always released, even on error. On ErrLocked, runID
// is empty; the caller should fetch the brand's ScrapeStartedAt instead.
func (c *Coordinator) Run(ctx context.Context, brandID int64, trigger Trigger, budgets orchestrator.Budgets) (runID string, inserted int, err error) {
	now := c.nowFunc().UTC()

	if lockErr := c.store.AcquireBrandLock(ctx, brandID, now, now.Add(-StaleLockWindow)); lockErr != nil {
		return "", 0, lockErr
	}

	runID = newRunID(brandID)
	log := c.log.With("run_id", runID, "brand_id", brandID, "trigger", string(trigger))

	defer func() {
		releaseErr := c.store.ReleaseBrandLock(context.Background(), brandID, c.nowFunc().UTC())
		if releaseErr != nil {
			log.Error("release brand lock", "error", releaseErr)
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ObserveRun("brand", status, time.Since(now).Seconds())
	}()

	brand, err := c.store.GetBrand(ctx, brandID)
	if err != nil {
		return runID, 0, fmt.Errorf("coordinator: get brand: %w", err)
	}

	topics, err := c.store.ListActiveTopics(ctx, brandID)
	if err != nil {
		return runID, 0, fmt.Errorf("coordinator: list topics: %w", err)
	}

	queries, keywordsByID, err := c.buildQueries(ctx, topics)
	if err != nil {
		return runID, 0, err
	}
	if len(queries) == 0 {
		log.Info("no active keywords, nothing to scrape")
		return runID, 0, nil
	}

	fromDate := now.Add(-24 * time.Hour)
	if brand.LastScrapedAt != nil && brand.LastScrapedAt.After(fromDate) {
		fromDate = *brand.LastScrapedAt
	}

	results, err := c.orchestrator.Run(ctx, brand.Name, queries, fromDate, budgets)
	if err != nil {
		return runID, 0, fmt.Errorf("coordinator: orchestrator run: %w", err)
	}

	topicsByID := make(map[int64]model.Topic, len(topics))
	for _, t := range topics {
		topicsByID[t.ID] = t
	}

	pending, err := c.buildMentions(ctx, brandID, results, topicsByID, keywordsByID, runID, log)
	if err != nil {
		return runID, 0, err
	}
	if len(pending) == 0 {
		return runID, 0, nil
	}

	mentions := make([]*model.Mention, len(pending))
	for i, p := range pending {
		mentions[i] = p.mention
	}

	inserted, err = c.store.BatchInsertMentions(ctx, mentions)
	if err != nil {
		return runID, 0, fmt.Errorf("coordinator: batch insert mentions: %w", err)
	}

	links := make([]model.MentionKeyword, 0, len(pending))
	for _, p := range pending {
		if p.mention.ID == 0 {
			continue // skipped as an existing (normalized_url, topic_id) row
		}
		links = append(links, model.MentionKeyword{
			MentionID: p.mention.ID,
			KeywordID: p.keywordID,
			MatchedIn: p.matchedIn,
			Score:     p.score,
		})
	}
	if len(links) > 0 {
		if err := c.store.BatchInsertMentionKeywords(ctx, links); err != nil {
			return runID, inserted, fmt.Errorf("coordinator: batch insert mention keywords: %w", err)
		}
	}

	log.Info("scrape run complete",
		"mentions_inserted", inserted,
		"candidates_considered", humanize.Comma(int64(totalCandidates(results))),
	)
	return runID, inserted, nil
}

func totalCandidates(results []orchestrator.TopicResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Candidates)
	}
	return n
}

// buildQueries loads each topic's active keywords and builds one
// KeywordQuery per (topic, keyword) pair, carrying the topic's query
// template unrendered, per spec §4.11 step 3.
func (c *Coordinator) buildQueries(ctx context.Context, topics []model.Topic) ([]orchestrator.KeywordQuery, map[int64]model.Keyword, error) {
	var queries []orchestrator.KeywordQuery
	keywordsByID := make(map[int64]model.Keyword)

	for _, topic := range topics {
		keywords, err := c.store.ListActiveKeywords(ctx, topic.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("coordinator: list keywords for topic %d: %w", topic.ID, err)
		}
		for _, kw := range keywords {
			cleaned := domainutil.CleanKeyword(kw.Text)
			if cleaned == "" {
				continue
			}
			keywordsByID[kw.ID] = kw
			queries = append(queries, orchestrator.KeywordQuery{
				TopicID:       topic.ID,
				Keyword:       kw,
				QueryTemplate: topic.QueryTemplate,
			})
		}
	}
	return queries, keywordsByID, nil
}

// buildMentions scores every candidate against its topic's keywords,
// assigns platforms, and converts the winners into persistable rows (spec
// §4.11 steps 5-6), after running the historical fuzzy-dedup supplement.
func (c *Coordinator) buildMentions(
	ctx context.Context,
	brandID int64,
	results []orchestrator.TopicResult,
	topicsByID map[int64]model.Topic,
	keywordsByID map[int64]model.Keyword,
	runID string,
	log *slog.Logger,
) ([]pendingMention, error) {
	platforms, err := c.store.LoadPlatforms(ctx)
	if err != nil {
		return nil, fmt.Errorf("coordinator: load platforms: %w", err)
	}

	var pending []pendingMention
	discoveredAt := c.nowFunc().UTC()

	for _, result := range results {
		topic, ok := topicsByID[result.TopicID]
		if !ok {
			continue
		}
		topicKeywords := keywordsForTopic(keywordsByID, topic.ID)
		if len(topicKeywords) == 0 {
			continue
		}

		filtered, err := c.filterAgainstHistory(ctx, brandID, result.Candidates)
		if err != nil {
			return nil, err
		}

		for _, candidate := range filtered {
			score, primaryKeywordID, matchedIn := scoreAgainstTopic(candidate, topicKeywords)
			if score <= 0 {
				continue
			}

			platformID, err := c.resolvePlatform(ctx, platforms, candidate.URL)
			if err != nil {
				log.Warn("resolve platform failed", "url", candidate.URL, "error", err)
				continue
			}

			m := &model.Mention{
				BrandID:          brandID,
				TopicID:          topic.ID,
				PrimaryKeywordID: primaryKeywordID,
				PlatformID:       platformID,
				Title:            candidate.Title,
				Teaser:           model.TruncateTeaser(candidate.Teaser),
				NormalizedURL:    domainutil.NormalizeURL(candidate.URL),
				RawURL:           candidate.URL,
				PublishedAt:      candidate.PublishedAt,
				DateConfidence:   candidate.DateConfidence,
				DiscoveredAt:     discoveredAt,
				ScrapeRunID:      runID,
			}
			pending = append(pending, pendingMention{mention: m, keywordID: primaryKeywordID, matchedIn: matchedIn, score: score})
		}
	}

	return pending, nil
}

func keywordsForTopic(keywordsByID map[int64]model.Keyword, topicID int64) []model.Keyword {
	var out []model.Keyword
	for _, kw := range keywordsByID {
		if kw.TopicID == topicID {
			out = append(out, kw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// scoreAgainstTopic implements spec §4.11 step 5's weighting: title hits
// count double a teaser hit, and keyword matches of 8+ runes earn a bonus
// for specificity (SPEC_FULL's Open Question decision #1). A teaser-only
// match still qualifies; only a zero score across every keyword drops the
// candidate.
func scoreAgainstTopic(candidate model.Candidate, keywords []model.Keyword) (score int, primaryKeywordID int64, matchedIn model.MatchedIn) {
	titleLower := strings.ToLower(candidate.Title)
	teaserLower := strings.ToLower(candidate.Teaser)

	best := 0
	var bestKeywordID int64
	var bestMatchedIn model.MatchedIn

	for _, kw := range keywords {
		text := strings.ToLower(strings.TrimSpace(kw.Text))
		if text == "" {
			continue
		}

		kwScore := 0
		matched := model.MatchedInTeaser
		if domainutil.ContainsWord(titleLower, text) {
			kwScore += titleMatchWeight
			matched = model.MatchedInTitle
		}
		if domainutil.ContainsWord(teaserLower, text) {
			kwScore += teaserMatchWeight
		}
		if kwScore == 0 {
			continue
		}
		if len([]rune(text)) >= longKeywordRuneMinimum {
			kwScore += longKeywordBonus
		}

		if kwScore > best {
			best = kwScore
			bestKeywordID = kw.ID
			bestMatchedIn = matched
		}
	}

	return best, bestKeywordID, bestMatchedIn
}

func (c *Coordinator) resolvePlatform(ctx context.Context, platforms map[string]model.Platform, rawURL string) (int64, error) {
	host := domainutil.EffectiveTLDPlusOne(rawURL)
	if p, ok := platforms[host]; ok {
		return p.ID, nil
	}
	created, err := c.store.CreatePlatform(ctx, host)
	if err != nil {
		return 0, err
	}
	platforms[host] = created
	return created.ID, nil
}

// filterAgainstHistory applies the supplemented historical fuzzy-dedup
// pass (SPEC_FULL's "Additional behaviors supplemented from
// original_source/") against mentions discovered within historyWindow for
// this brand.
func (c *Coordinator) filterAgainstHistory(ctx context.Context, brandID int64, candidates []model.Candidate) ([]model.Candidate, error) {
	since := c.nowFunc().UTC().Add(-historyWindow)
	historical, err := c.store.ListRecentMentions(ctx, brandID, since)
	if err != nil {
		return nil, fmt.Errorf("coordinator: list recent mentions: %w", err)
	}
	if len(historical) == 0 {
		return candidates, nil
	}

	filtered, removed := dedup.AgainstHistory(candidates, historical, c.dedupCfg)
	if removed > 0 {
		metrics.ObserveDuplicatesRemoved("historical_fuzzy", removed)
	}
	return filtered, nil
}

func newRunID(brandID int64) string {
	return fmt.Sprintf("%d-%s", brandID, uuid.New().String()[:8])
}
