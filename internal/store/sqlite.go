package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver registration

	"mediawatch/internal/model"
	"mediawatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens a SQLite database at dsn, applies pragmas, and runs pending
// migrations.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// NewSQLite wraps an already-open, already-migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetBrand(ctx context.Context, id int64) (*model.Brand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, name, is_active, scrape_frequency_hours, last_scraped_at,
		        scrape_in_progress, scrape_started_at, allowed_languages
		 FROM brands WHERE id = ?`, id,
	)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan brand: %w", err)
	}
	return b, nil
}

func (s *SQLite) ListDueBrands(ctx context.Context, now time.Time) ([]model.Brand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, name, is_active, scrape_frequency_hours, last_scraped_at,
		        scrape_in_progress, scrape_started_at, allowed_languages
		 FROM brands
		 WHERE is_active = 1
		   AND (last_scraped_at IS NULL
		        OR datetime(last_scraped_at, '+' || scrape_frequency_hours || ' hours') <= datetime(?))`,
		now.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query due brands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *SQLite) AcquireBrandLock(ctx context.Context, brandID int64, now, staleBefore time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE brands SET scrape_in_progress = 1, scrape_started_at = ?
		 WHERE id = ? AND (scrape_in_progress = 0 OR scrape_started_at < ?)`,
		now.UTC().Format(timeLayout), brandID, staleBefore.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("acquire brand lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrLocked
	}
	return nil
}

func (s *SQLite) ReleaseBrandLock(ctx context.Context, brandID int64, scrapedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE brands SET scrape_in_progress = 0, scrape_started_at = NULL, last_scraped_at = ?
		 WHERE id = ?`,
		scrapedAt.UTC().Format(timeLayout), brandID,
	)
	if err != nil {
		return fmt.Errorf("release brand lock: %w", err)
	}
	return nil
}

func (s *SQLite) ListActiveTopics(ctx context.Context, brandID int64) ([]model.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, name, is_active, query_template, updated_at
		 FROM topics WHERE brand_id = ? AND is_active = 1 ORDER BY updated_at DESC`, brandID,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Topic
	for rows.Next() {
		var t model.Topic
		var queryTemplate sql.NullString
		var updatedAt string
		if err := rows.Scan(&t.ID, &t.BrandID, &t.Name, &t.IsActive, &queryTemplate, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		t.QueryTemplate = queryTemplate.String
		t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) ListActiveKeywords(ctx context.Context, topicID int64) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic_id, text FROM keywords WHERE topic_id = ? ORDER BY id`, topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Keyword
	for rows.Next() {
		var k model.Keyword
		if err := rows.Scan(&k.ID, &k.TopicID, &k.Text); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLite) GetMentionByURLTopic(ctx context.Context, normalizedURL string, topicID int64) (*model.Mention, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, topic_id, primary_keyword_id, platform_id, title, teaser,
		        normalized_url, raw_url, published_at, date_confidence, read_status,
		        notified_status, discovered_at, scrape_run_id
		 FROM mentions WHERE normalized_url = ? AND topic_id = ?`, normalizedURL, topicID,
	)
	m, err := scanMention(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan mention: %w", err)
	}
	return m, nil
}

func (s *SQLite) ListRecentMentions(ctx context.Context, brandID int64, since time.Time) ([]model.Mention, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, topic_id, primary_keyword_id, platform_id, title, teaser,
		        normalized_url, raw_url, published_at, date_confidence, read_status,
		        notified_status, discovered_at, scrape_run_id
		 FROM mentions WHERE brand_id = ? AND discovered_at >= ? ORDER BY discovered_at DESC`,
		brandID, since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent mentions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *SQLite) BatchInsertMentions(ctx context.Context, mentions []*model.Mention) (int, error) {
	if len(mentions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mentions (brand_id, topic_id, primary_keyword_id, platform_id, title, teaser,
		                        normalized_url, raw_url, published_at, date_confidence, read_status,
		                        notified_status, discovered_at, scrape_run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (normalized_url, topic_id) DO NOTHING`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare insert mention: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, m := range mentions {
		var publishedAt *string
		if m.PublishedAt != nil {
			v := m.PublishedAt.UTC().Format(timeLayout)
			publishedAt = &v
		}
		res, err := stmt.ExecContext(ctx,
			m.BrandID, m.TopicID, m.PrimaryKeywordID, m.PlatformID, m.Title, m.Teaser,
			m.NormalizedURL, m.RawURL, publishedAt, string(m.DateConfidence), boolToInt(m.ReadStatus),
			boolToInt(m.NotifiedStatus), m.DiscoveredAt.UTC().Format(timeLayout), m.ScrapeRunID,
		)
		if err != nil {
			return 0, fmt.Errorf("insert mention: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return 0, fmt.Errorf("last insert id: %w", err)
			}
			m.ID = id
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLite) BatchInsertMentionKeywords(ctx context.Context, links []model.MentionKeyword) error {
	if len(links) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mention_keywords (mention_id, keyword_id, matched_in, score)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (mention_id, keyword_id) DO UPDATE SET score = excluded.score WHERE excluded.score > mention_keywords.score`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert mention_keyword: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, l := range links {
		if l.MentionID == 0 {
			continue // mention was skipped by the ON CONFLICT DO NOTHING above
		}
		if _, err := stmt.ExecContext(ctx, l.MentionID, l.KeywordID, string(l.MatchedIn), l.Score); err != nil {
			return fmt.Errorf("insert mention_keyword: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) LoadPlatforms(ctx context.Context) (map[string]model.Platform, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, hostname FROM platforms`)
	if err != nil {
		return nil, fmt.Errorf("query platforms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]model.Platform)
	for rows.Next() {
		var p model.Platform
		if err := rows.Scan(&p.ID, &p.Hostname); err != nil {
			return nil, fmt.Errorf("scan platform: %w", err)
		}
		out[p.Hostname] = p
	}
	return out, rows.Err()
}

func (s *SQLite) CreatePlatform(ctx context.Context, hostname string) (model.Platform, error) {
	hostname = strings.ToLower(hostname)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO platforms (hostname) VALUES (?) ON CONFLICT (hostname) DO NOTHING`, hostname,
	)
	if err != nil {
		return model.Platform{}, fmt.Errorf("insert platform: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var p model.Platform
		err := s.db.QueryRowContext(ctx, `SELECT id, hostname FROM platforms WHERE hostname = ?`, hostname).
			Scan(&p.ID, &p.Hostname)
		if err != nil {
			return model.Platform{}, fmt.Errorf("select existing platform: %w", err)
		}
		return p, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Platform{}, fmt.Errorf("last insert id: %w", err)
	}
	return model.Platform{ID: id, Hostname: hostname}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBrand(row scannable) (*model.Brand, error) {
	var b model.Brand
	var isActive, scrapeInProgress int
	var lastScraped, scrapeStarted, allowedLanguages sql.NullString
	err := row.Scan(&b.ID, &b.Owner, &b.Name, &isActive, &b.ScrapeFrequencyHours, &lastScraped,
		&scrapeInProgress, &scrapeStarted, &allowedLanguages)
	if err != nil {
		return nil, err
	}
	b.IsActive = isActive == 1
	b.ScrapeInProgress = scrapeInProgress == 1
	if lastScraped.Valid {
		t, _ := time.Parse(timeLayout, lastScraped.String)
		b.LastScrapedAt = &t
	}
	if scrapeStarted.Valid {
		t, _ := time.Parse(timeLayout, scrapeStarted.String)
		b.ScrapeStartedAt = &t
	}
	if allowedLanguages.Valid && allowedLanguages.String != "" {
		b.AllowedLanguages = strings.Split(allowedLanguages.String, ",")
	}
	return &b, nil
}

func scanMention(row scannable) (*model.Mention, error) {
	var m model.Mention
	var teaser sql.NullString
	var publishedAt sql.NullString
	var dateConfidence string
	var readStatus, notifiedStatus int
	var discoveredAt string

	err := row.Scan(&m.ID, &m.BrandID, &m.TopicID, &m.PrimaryKeywordID, &m.PlatformID, &m.Title, &teaser,
		&m.NormalizedURL, &m.RawURL, &publishedAt, &dateConfidence, &readStatus, &notifiedStatus,
		&discoveredAt, &m.ScrapeRunID)
	if err != nil {
		return nil, err
	}
	m.Teaser = teaser.String
	m.DateConfidence = model.DateConfidence(dateConfidence)
	m.ReadStatus = readStatus == 1
	m.NotifiedStatus = notifiedStatus == 1
	if publishedAt.Valid {
		t, _ := time.Parse(timeLayout, publishedAt.String)
		m.PublishedAt = &t
	}
	m.DiscoveredAt, _ = time.Parse(timeLayout, discoveredAt)
	return &m, nil
}

var _ Store = (*SQLite)(nil)
