package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Captures table - one row per finished capture session
		`CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL CHECK(state IN ('completed', 'cancelled', 'failed')),
			fingerprint TEXT NOT NULL DEFAULT '',
			hash_algorithm TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,

		// Deliveries table - hook attempts for completed captures
		`CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			attempted_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_captures_started_at ON captures(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_capture_id ON deliveries(capture_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
