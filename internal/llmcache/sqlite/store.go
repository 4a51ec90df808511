// Package sqlite is a persistent llmcache.Store backed by SQLite.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/pacer/internal/llmcache"
)

// Store is an exact-match reply store keyed on a hash of the input text and
// the model name.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

const createRepliesTable = `
CREATE TABLE IF NOT EXISTS llm_replies (
	text_hash TEXT NOT NULL,
	model TEXT NOT NULL,
	reply TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	PRIMARY KEY (text_hash, model)
);
`

// New opens (and migrates) the database at path. A zero ttl keeps replies
// forever.
func New(path string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createRepliesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// HashText computes the SHA-256 hex digest of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)
}

// Get returns the stored reply for key, ignoring expired rows.
func (s *Store) Get(ctx context.Context, key llmcache.Key) (string, bool, error) {
	var (
		reply      string
		createdAt  int64
		ttlSeconds int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT reply, created_at, ttl_seconds FROM llm_replies WHERE text_hash = ? AND model = ?`,
		HashText(key.Text), key.Model,
	).Scan(&reply, &createdAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}

	if ttlSeconds > 0 && s.now().Unix()-createdAt > ttlSeconds {
		s.misses.Add(1)
		return "", false, nil
	}

	s.hits.Add(1)
	return reply, true, nil
}

// Put stores reply for key, replacing any previous row.
func (s *Store) Put(ctx context.Context, key llmcache.Key, reply string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO llm_replies (text_hash, model, reply, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		HashText(key.Text), key.Model, reply, s.now().Unix(), int64(s.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Clear removes every row and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM llm_replies`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return int(n), nil
}

// PurgeExpired removes rows older than their TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM llm_replies WHERE ttl_seconds > 0 AND ? - created_at > ttl_seconds`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Counts returns the hit and miss counters since open.
func (s *Store) Counts() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ llmcache.Store = (*Store)(nil)
