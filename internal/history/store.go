package history

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/drip-check/internal/analysis"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Item is a persisted record of one completed analysis.
type Item struct {
	ID           uuid.UUID
	Type         analysis.ReviewType
	Date         time.Time
	Images       [][]byte
	Summary      string
	OverallScore *float64
}

// NewItem builds a history item for a successful result. It returns false
// for error results, which are never persisted.
func NewItem(result analysis.Result, images [][]byte, date time.Time) (*Item, bool) {
	reviewType, ok := result.ReviewType()
	if !ok {
		return nil, false
	}
	item := &Item{
		ID:      uuid.New(),
		Type:    reviewType,
		Date:    date,
		Images:  images,
		Summary: result.Summary(),
	}
	if score, ok := result.Score(); ok {
		item.OverallScore = &score
	}
	return item, true
}

// Store defines history persistence.
type Store interface {
	Save(item *Item) error
	Get(reviewType analysis.ReviewType) ([]Item, error)
	GetByID(id uuid.UUID) (*Item, error)
	Delete(id uuid.UUID) error
	DeleteAllOfType(reviewType analysis.ReviewType) error
	DeleteAll() error
	Count(reviewType analysis.ReviewType) (int, error)
	Close() error
}

// SQLiteStore implements Store on a local SQLite database. Writes are
// serialized by mu; reads may run concurrently.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the history database at dbPath and
// brings its schema up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("dbPath", dbPath).Msg("could not restrict database permissions")
	}

	return store, nil
}

// Save inserts item together with its images in a single transaction.
func (s *SQLiteStore) Save(item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var score sql.NullFloat64
	if item.OverallScore != nil {
		score = sql.NullFloat64{Float64: *item.OverallScore, Valid: true}
	}

	_, err = tx.Exec(
		`INSERT INTO history_items (id, review_type, created_at, summary, overall_score) VALUES (?, ?, ?, ?, ?)`,
		item.ID.String(), string(item.Type), item.Date.UnixNano(), item.Summary, score,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history item: %w", err)
	}

	for i, img := range item.Images {
		_, err := tx.Exec(
			`INSERT INTO history_images (item_id, position, data) VALUES (?, ?, ?)`,
			item.ID.String(), i, img,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history image %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history item: %w", err)
	}
	return nil
}

// Get returns all items of the given type, newest first.
func (s *SQLiteStore) Get(reviewType analysis.ReviewType) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, review_type, created_at, summary, overall_score FROM history_items
		WHERE review_type = ? ORDER BY created_at DESC`,
		string(reviewType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	for i := range items {
		images, err := s.loadImages(items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Images = images
	}
	return items, nil
}

// GetByID returns a single item. Returns nil, nil if it doesn't exist.
func (s *SQLiteStore) GetByID(id uuid.UUID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, review_type, created_at, summary, overall_score FROM history_items WHERE id = ?`,
		id.String(),
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item.Images, err = s.loadImages(item.ID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the item with the given id. Deleting a missing id is a no-op.
func (s *SQLiteStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM history_items WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete history item: %w", err)
	}
	return nil
}

// DeleteAllOfType removes every item of one review type.
func (s *SQLiteStore) DeleteAllOfType(reviewType analysis.ReviewType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM history_items WHERE review_type = ?", string(reviewType))
	if err != nil {
		return fmt.Errorf("failed to delete %s history: %w", reviewType, err)
	}
	return nil
}

// DeleteAll removes every item regardless of type.
func (s *SQLiteStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM history_items")
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// Count returns the number of items of the given type.
func (s *SQLiteStore) Count(reviewType analysis.ReviewType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM history_items WHERE review_type = ?",
		string(reviewType),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		id, reviewType, summary string
		createdAt               int64
		score                   sql.NullFloat64
	)
	if err := row.Scan(&id, &reviewType, &createdAt, &summary, &score); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan history item: %w", err)
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid history item id %q: %w", id, err)
	}

	item := &Item{
		ID:      parsedID,
		Type:    analysis.ReviewType(reviewType),
		Date:    time.Unix(0, createdAt),
		Summary: summary,
	}
	if score.Valid {
		v := score.Float64
		item.OverallScore = &v
	}
	return item, nil
}

func (s *SQLiteStore) loadImages(id uuid.UUID) ([][]byte, error) {
	rows, err := s.db.Query(
		"SELECT data FROM history_images WHERE item_id = ? ORDER BY position",
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history images: %w", err)
	}
	defer rows.Close()

	var images [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan history image: %w", err)
		}
		images = append(images, data)
	}
	return images, rows.Err()
}
