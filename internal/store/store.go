// Package store defines the persistence interface consumed by the
// coordinator, scheduler, and orchestrator (spec §6.1), plus its
// SQLite-backed implementation.
package store

import (
	"context"
	"errors"
	"time"

	"mediawatch/internal/model"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrLocked is returned by AcquireBrandLock when the brand is already
// running (and its lock is not stale).
var ErrLocked = errors.New("store: brand locked")

// Store is the persistence surface the scraping core depends on. The core
// never touches database/sql directly; every component holds a Store.
type Store interface {
	// GetBrand returns a brand by id, or ErrNotFound.
	GetBrand(ctx context.Context, id int64) (*model.Brand, error)

	// ListDueBrands returns active brands whose last_scraped_at is older
	// than their scrape_frequency_hours, as of now.
	ListDueBrands(ctx context.Context, now time.Time) ([]model.Brand, error)

	// AcquireBrandLock performs the conditional update from spec §4.11
	// step 1: it sets scrape_in_progress=true, scrape_started_at=now WHERE
	// id=? AND (scrape_in_progress=false OR scrape_started_at<staleBefore).
	// Returns ErrLocked if zero rows matched.
	AcquireBrandLock(ctx context.Context, brandID int64, now, staleBefore time.Time) error

	// ReleaseBrandLock clears the in-progress flag and updates
	// last_scraped_at. Must be safe to call even if the lock was never
	// held (idempotent release on the cleanup path).
	ReleaseBrandLock(ctx context.Context, brandID int64, scrapedAt time.Time) error

	// ListActiveTopics returns active topics for a brand.
	ListActiveTopics(ctx context.Context, brandID int64) ([]model.Topic, error)

	// ListActiveKeywords returns keywords belonging to a topic.
	ListActiveKeywords(ctx context.Context, topicID int64) ([]model.Keyword, error)

	// GetMentionByURLTopic looks up an existing mention by the
	// (normalized_url, topic_id) uniqueness invariant, for historical
	// dedup before insert. Returns ErrNotFound if absent.
	GetMentionByURLTopic(ctx context.Context, normalizedURL string, topicID int64) (*model.Mention, error)

	// ListRecentMentions returns mentions for a brand discovered at or
	// after since, used for the historical fuzzy-dedup pass.
	ListRecentMentions(ctx context.Context, brandID int64, since time.Time) ([]model.Mention, error)

	// BatchInsertMentions inserts mentions, skipping any whose
	// (normalized_url, topic_id) already exists. Mutates each mention's ID
	// in place for the ones actually inserted, and returns the count
	// inserted.
	BatchInsertMentions(ctx context.Context, mentions []*model.Mention) (int, error)

	// BatchInsertMentionKeywords links mention-keyword pairs.
	BatchInsertMentionKeywords(ctx context.Context, links []model.MentionKeyword) error

	// LoadPlatforms returns every known platform keyed by hostname, for the
	// coordinator's in-memory cache (spec §4.11 step 6).
	LoadPlatforms(ctx context.Context) (map[string]model.Platform, error)

	// CreatePlatform inserts a new platform row and returns it populated
	// with its ID. Safe to call concurrently; returns the existing row if
	// another caller raced to insert the same hostname first.
	CreatePlatform(ctx context.Context, hostname string) (model.Platform, error)

	Close() error
}
