package llm

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raine/drip-check/internal/analysis"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// CacheStore persists generated analysis documents by request key.
type CacheStore interface {
	GetAnalysis(key string) (string, bool, error)
	SetAnalysis(key string, reviewType analysis.ReviewType, text string) error
}

// CachedGenerator wraps a Generator so identical photos are only sent to
// the model once per review type.
type CachedGenerator struct {
	inner Generator
	store CacheStore
}

func NewCachedGenerator(inner Generator, store CacheStore) *CachedGenerator {
	return &CachedGenerator{inner: inner, store: store}
}

// cacheKey hashes the review type and images. Each image is length-prefixed
// so [A,B] and [AB] differ.
func cacheKey(reviewType analysis.ReviewType, images [][]byte) string {
	h := sha256.New()
	h.Write([]byte(reviewType))
	for _, img := range images {
		binary.Write(h, binary.LittleEndian, int64(len(img)))
		h.Write(img)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedGenerator) GenerateAnalysis(ctx context.Context, reviewType analysis.ReviewType, images [][]byte) (*Generation, error) {
	key := cacheKey(reviewType, images)

	if c.store != nil {
		text, ok, err := c.store.GetAnalysis(key)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if ok {
			log.Debug().Str("key", key[:16]).Str("reviewType", string(reviewType)).Msg("analysis cache hit")
			return &Generation{Text: text}, nil
		}
	}

	gen, err := c.inner.GenerateAnalysis(ctx, reviewType, images)
	if err != nil {
		return nil, err
	}

	// Only documents that decode are worth serving again.
	if c.store != nil && !analysis.Parse(gen.Text, reviewType).IsError() {
		if err := c.store.SetAnalysis(key, reviewType, gen.Text); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis")
		} else {
			log.Debug().Str("key", key[:16]).Msg("cached analysis")
		}
	}
	return gen, nil
}

// SQLiteCache implements CacheStore on a local SQLite database.
type SQLiteCache struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS analysis_cache (
		cache_key TEXT PRIMARY KEY,
		review_type TEXT NOT NULL,
		analysis TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create analysis_cache table: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) GetAnalysis(key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var text string
	err := c.db.QueryRow("SELECT analysis FROM analysis_cache WHERE cache_key = ?", key).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached analysis: %w", err)
	}
	return text, true, nil
}

func (c *SQLiteCache) SetAnalysis(key string, reviewType analysis.ReviewType, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO analysis_cache (cache_key, review_type, analysis, created_at) VALUES (?, ?, ?, ?)",
		key, string(reviewType), text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
