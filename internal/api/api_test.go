package api

import (
	"context"
	"net/http"
	"net/http/httptest"
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
	brand  *model.Brand
	locked bool
}

func (f *fakeStore) GetBrand(ctx context.Context, id int64) (*model.Brand, error) {
	if f.brand == nil {
		return nil, store.ErrNotFound
	}
	b := *f.brand
	return &b, nil
}
func (f *fakeStore) ListDueBrands(ctx context.Context, now time.Time) ([]model.Brand, error) {
	return nil, nil
}
func (f *fakeStore) AcquireBrandLock(ctx context.Context, brandID int64, now, staleBefore time.Time) error {
	if f.locked {
		return store.ErrLocked
	}
	f.locked = true
	return nil
}
func (f *fakeStore) ReleaseBrandLock(ctx context.Context, brandID int64, scrapedAt time.Time) error {
	f.locked = false
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

func newTestServer(fs *fakeStore) *Server {
	orch := orchestrator.New([]provider.Provider{noopProvider{}}, dedup.DefaultNearDuplicateConfig(), nil, nil)
	c := coordinator.New(fs, orch, dedup.DefaultNearDuplicateConfig(), nil)
	return New(fs, c, orchestrator.Budgets{}, nil)
}

func TestHandleScrapeBrandNotFound(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/scrape/brand/1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleScrapeBrandAccepted(t *testing.T) {
	fs := &fakeStore{brand: &model.Brand{ID: 1, Name: "Acme"}}
	s := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/scrape/brand/1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleScrapeBrandConflictWhenLocked(t *testing.T) {
	fs := &fakeStore{brand: &model.Brand{ID: 1, Name: "Acme"}, locked: true}
	s := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/scrape/brand/1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleMetricsScraping(t *testing.T) {
	s := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/metrics/scraping", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
