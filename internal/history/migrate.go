package history

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations are applied in order; the schema version is the number of
// migrations applied, stored in PRAGMA user_version.
var migrations = []string{
	`
	CREATE TABLE history_items (
		id TEXT PRIMARY KEY,
		review_type TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		summary TEXT NOT NULL,
		overall_score REAL
	);
	CREATE INDEX idx_history_items_type_date ON history_items (review_type, created_at DESC);
	CREATE TABLE history_images (
		item_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (item_id, position),
		FOREIGN KEY (item_id) REFERENCES history_items(id) ON DELETE CASCADE
	);
	`,
}

// SchemaVersion is the version a fully migrated database reports.
var SchemaVersion = len(migrations)

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
		log.Info().Int("version", i+1).Msg("applied history schema migration")
	}
	return nil
}
