package provider

import (
	"context"
	"testing"

	"mediawatch/internal/model"
	"mediawatch/internal/recipe"
	"mediawatch/internal/store"
)

func newTestRecipeStoreWithRSS(t *testing.T, domain string, rssURLs []string) *recipe.Store {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := recipe.New(db)
	r := model.SourceRecipe{
		Domain:        domain,
		RSSURLs:       rssURLs,
		DiscoveryType: model.DiscoveryRSS,
	}
	if err := s.Upsert(context.Background(), r); err != nil {
		t.Fatalf("upsert recipe: %v", err)
	}
	return s
}
