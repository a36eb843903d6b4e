package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TobiSchelling/NewsGrade/internal/news"
	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
)

// CacheStat summarizes the cached rows of one category.
type CacheStat struct {
	Category  string
	Total     int
	Fresh     int
	LastWrite time.Time
}

const upsertNewsSQL = `
INSERT INTO news_cache (
    external_id, category, region, item_id, headline, summary, source, url,
    grade, confidence, keywords, published_at, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id) DO UPDATE SET
    region = excluded.region,
    item_id = excluded.item_id,
    headline = excluded.headline,
    summary = excluded.summary,
    source = excluded.source,
    url = excluded.url,
    grade = excluded.grade,
    confidence = excluded.confidence,
    keywords = excluded.keywords,
    published_at = excluded.published_at,
    created_at = excluded.created_at`

// UpsertItems writes items under category, keyed by category and item id.
// Existing rows are overwritten and their created_at reset.
func (db *DB) UpsertItems(ctx context.Context, category string, items []news.Item, createdAt time.Time) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(upsertNewsSQL))
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	created := createdAt.UnixMilli()
	for _, it := range items {
		keywords := it.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		kw, err := json.Marshal(keywords)
		if err != nil {
			return fmt.Errorf("encoding keywords: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			news.ExternalID(category, it.ID),
			category,
			sql.NullString{String: it.Region, Valid: it.Region != ""},
			it.ID,
			it.Headline,
			it.Summary,
			it.Source,
			it.URL,
			string(it.Grade),
			it.Confidence,
			string(kw),
			it.PublishedAt.UnixMilli(),
			created,
		)
		if err != nil {
			return fmt.Errorf("upserting %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

// FreshItems returns the newest-published items of category written at or
// after since. An empty region matches every region.
func (db *DB) FreshItems(ctx context.Context, category, region string, since time.Time, limit int) ([]news.Item, error) {
	query := `
SELECT item_id, headline, summary, source, url, grade, confidence, keywords,
       published_at, region
FROM news_cache
WHERE category = ? AND created_at >= ?`
	args := []any{category, since.UnixMilli()}

	if region != "" {
		query += " AND region = ?"
		args = append(args, region)
	}
	query += " ORDER BY published_at DESC, external_id LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying news cache: %w", err)
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		var (
			it          news.Item
			grade       string
			keywords    string
			publishedAt int64
			itemRegion  sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Headline, &it.Summary, &it.Source, &it.URL,
			&grade, &it.Confidence, &keywords, &publishedAt, &itemRegion); err != nil {
			return nil, fmt.Errorf("scanning news cache row: %w", err)
		}
		it.Grade = sentiment.Grade(grade)
		it.PublishedAt = time.UnixMilli(publishedAt).UTC()
		it.Region = itemRegion.String
		if err := json.Unmarshal([]byte(keywords), &it.Keywords); err != nil {
			it.Keywords = nil
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CacheStats reports per-category row counts; rows written at or after
// since count as fresh.
func (db *DB) CacheStats(ctx context.Context, since time.Time) ([]CacheStat, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
SELECT category,
       COUNT(*),
       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
       COALESCE(MAX(created_at), 0)
FROM news_cache
GROUP BY category
ORDER BY category`), since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying cache stats: %w", err)
	}
	defer rows.Close()

	var stats []CacheStat
	for rows.Next() {
		var (
			s    CacheStat
			last int64
		)
		if err := rows.Scan(&s.Category, &s.Total, &s.Fresh, &last); err != nil {
			return nil, fmt.Errorf("scanning cache stats: %w", err)
		}
		if last > 0 {
			s.LastWrite = time.UnixMilli(last).UTC()
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
