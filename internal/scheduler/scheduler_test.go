package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediawatch/internal/coordinator"
	"mediawatch/internal/dedup"
	"mediawatch/internal/model"
	"mediawatch/internal/orchestrator"
	"mediawatch/internal/provider"
	"mediawatch/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	due      []model.Brand
	locked   map[int64]bool
	released []int64
}

func (f *fakeStore) GetBrand(ctx context.Context, id int64) (*model.Brand, error) {
	for _, b := range f.due {
		if b.ID == id {
			return &b, nil
		}
	}
	return &model.Brand{ID: id, Name: "Acme"}, nil
}

func (f *fakeStore) ListDueBrands(ctx context.Context, now time.Time) ([]model.Brand, error) {
	return f.due, nil
}

func (f *fakeStore) AcquireBrandLock(ctx context.Context, brandID int64, now, staleBefore time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked == nil {
		f.locked = make(map[int64]bool)
	}
	if f.locked[brandID] {
		return store.ErrLocked
	}
	f.locked[brandID] = true
	return nil
}

func (f *fakeStore) ReleaseBrandLock(ctx context.Context, brandID int64, scrapedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[brandID] = false
	f.released = append(f.released, brandID)
	return nil
}

func (f *fakeStore) ListActiveTopics(ctx context.Context, brandID int64) ([]model.Topic, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveKeywords(ctx context.Context, topicID int64) ([]model.Keyword, error) {
	return nil, nil
}
func (f *fakeStore) GetMentionByURLTopic(ctx context.Context, normalizedURL string, topicID int64) (*model.Mention, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) ListRecentMentions(ctx context.Context, brandID int64, since time.Time) ([]model.Mention, error) {
	return nil, nil
}
func (f *fakeStore) BatchInsertMentions(ctx context.Context, mentions []*model.Mention) (int, error) {
	return 0, nil
}
func (f *fakeStore) BatchInsertMentionKeywords(ctx context.Context, links []model.MentionKeyword) error {
	return nil
}
func (f *fakeStore) LoadPlatforms(ctx context.Context) (map[string]model.Platform, error) {
	return map[string]model.Platform{}, nil
}
func (f *fakeStore) CreatePlatform(ctx context.Context, hostname string) (model.Platform, error) {
	return model.Platform{ID: 1, Hostname: hostname}, nil
}
func (f *fakeStore) Close() error { return nil }

type noopProvider struct{}

func (noopProvider) Name() string { return "noop" }
func (noopProvider) Discover(context.Context, provider.Query) ([]model.Candidate, error) {
	return nil, nil
}

func newTestScheduler(fs *fakeStore) *Scheduler {
	orch := orchestrator.New([]provider.Provider{noopProvider{}}, dedup.DefaultNearDuplicateConfig(), nil, nil)
	c := coordinator.New(fs, orch, dedup.DefaultNearDuplicateConfig(), nil)
	s := New(fs, c, orchestrator.Budgets{}, nil)
	s.SetJitterWindow(10 * time.Millisecond)
	return s
}

func TestCheckAllScrapesEveryDueBrand(t *testing.T) {
	fs := &fakeStore{due: []model.Brand{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}}}
	s := newTestScheduler(fs)
	s.SetTickInterval(time.Hour)

	s.checkAll(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fs.mu.Lock()
		releasedCount := len(fs.released)
		fs.mu.Unlock()
		if releasedCount == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected both brands to be released after scraping, got %v", fs.released)
}

func TestScrapeBrandSkipsLockedBrandSilently(t *testing.T) {
	fs := &fakeStore{locked: map[int64]bool{1: true}}
	s := newTestScheduler(fs)

	done := make(chan struct{})
	go func() {
		s.scrapeBrand(context.Background(), 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scrapeBrand did not return")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.released) != 0 {
		t.Errorf("expected no release call for an already-locked brand, got %v", fs.released)
	}
}

func TestScrapeBrandRespectsContextCancellation(t *testing.T) {
	fs := &fakeStore{}
	s := newTestScheduler(fs)
	s.SetJitterWindow(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	s.scrapeBrand(ctx, 1)
	if time.Since(start) > time.Second {
		t.Error("expected scrapeBrand to return immediately on a cancelled context")
	}
}
