package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
// DDL must stay valid for both SQLite and Postgres.
var migrations = []Migration{
	{
		Version:     1,
		Description: "news cache",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS news_cache (
    external_id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    region TEXT,
    item_id TEXT NOT NULL,
    headline TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    grade TEXT NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    keywords TEXT NOT NULL DEFAULT '[]',
    published_at BIGINT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_news_cache_fresh ON news_cache(category, created_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index cache reads by publish time",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_news_cache_published ON news_cache(category, published_at)`)
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
