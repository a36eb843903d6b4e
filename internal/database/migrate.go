package database

import (
	"fmt"
	"log"
	"time"
)

// ensureMigrationsTable creates the bookkeeping table used on both dialects.
func (db *DB) ensureMigrationsTable() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at BIGINT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

// getSchemaVersion returns the highest applied migration version.
func (db *DB) getSchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// isLegacyDB returns true if the cache table exists but no migration was
// recorded. This detects databases created before the migration system.
func (db *DB) isLegacyDB() (bool, error) {
	var query string
	switch db.dialect {
	case Postgres:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'news_cache'"
	default:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='news_cache'"
	}

	var count int
	if err := db.conn.QueryRow(query).Scan(&count); err != nil {
		return false, fmt.Errorf("checking for legacy tables: %w", err)
	}
	return count > 0, nil
}

func (db *DB) recordVersion(exec func(query string, args ...any) error, m Migration) error {
	return exec(
		db.rebind("INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)"),
		m.Version, m.Description, time.Now().UnixMilli(),
	)
}

// migrate brings the database schema up to the latest version.
func (db *DB) migrate() error {
	if err := db.ensureMigrationsTable(); err != nil {
		return err
	}

	current, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	// Legacy DB detection: the table exists but nothing was recorded.
	// Stamp as version 1 since the schema already matches migration 1.
	if current == 0 {
		legacy, err := db.isLegacyDB()
		if err != nil {
			return err
		}
		if legacy {
			log.Printf("detected legacy database, stamping as version 1")
			exec := func(q string, args ...any) error {
				_, err := db.conn.Exec(q, args...)
				return err
			}
			if err := db.recordVersion(exec, migrations[0]); err != nil {
				return fmt.Errorf("stamping legacy version: %w", err)
			}
			current = 1
		}
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Printf("applying migration %d: %s", m.Version, m.Description)

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		exec := func(q string, args ...any) error {
			_, err := tx.Exec(q, args...)
			return err
		}
		if err := db.recordVersion(exec, m); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
