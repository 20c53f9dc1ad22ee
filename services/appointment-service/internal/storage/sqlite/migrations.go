package sqlite

import "fmt"

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	path       TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	provider   INTEGER NOT NULL DEFAULT 0,
	avatar_id  TEXT REFERENCES files (id) ON DELETE SET NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS appointments (
	id          TEXT PRIMARY KEY,
	date        TEXT NOT NULL,
	customer_id TEXT NOT NULL REFERENCES users (id),
	provider_id TEXT NOT NULL REFERENCES users (id),
	canceled_at TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS appointments_provider_slot_active_idx
	ON appointments (provider_id, date)
	WHERE canceled_at IS NULL;

CREATE INDEX IF NOT EXISTS appointments_customer_date_idx
	ON appointments (customer_id, date);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	provider_id TEXT NOT NULL REFERENCES users (id),
	read        INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS notifications_provider_created_idx
	ON notifications (provider_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

func (s *Store) runMigrations() error {
	current := 0

	var tableCount int
	err := s.db.Get(&tableCount, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}
