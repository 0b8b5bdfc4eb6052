package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// History - append-only log of completed utterances and timelines
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			direction TEXT NOT NULL CHECK(direction IN ('recognition', 'generation')),
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			favorite INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		// Vocabulary bundles - gesture table, gloss dictionary and rules as JSON
		`CREATE TABLE IF NOT EXISTS vocabularies (
			version TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Gestures - trained classifier templates
		`CREATE TABLE IF NOT EXISTS gestures (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			tolerance REAL NOT NULL DEFAULT 0.35,
			samples INTEGER NOT NULL DEFAULT 0,
			frames TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Gesture samples - raw recorded samples for training
		`CREATE TABLE IF NOT EXISTS gesture_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings - key-value pairs such as the active vocabulary version
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_favorite ON history(favorite)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_samples_gesture_id ON gesture_samples(gesture_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
