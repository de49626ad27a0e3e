package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite keeps entries in a sqlite database, so results survive restarts when dbPath is a file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// ":memory:" databases exist per connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS search_cache (
			cache_key TEXT NOT NULL PRIMARY KEY,
			data TEXT NOT NULL,
			cached_at INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		data     string
		cachedAt int64
		ttlMs    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, cached_at, ttl_ms FROM search_cache WHERE cache_key = ?`, key,
	).Scan(&data, &cachedAt, &ttlMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	e := Entry{Timestamp: time.Unix(0, cachedAt), TTL: time.Duration(ttlMs) * time.Millisecond}
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal cached result %q: %w", key, err)
	}
	return e, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal result %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_cache (cache_key, data, cached_at, ttl_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key)
		 DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, ttl_ms = excluded.ttl_ms`,
		key, string(data), e.Timestamp.UnixNano(), e.TTL.Milliseconds(),
	)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE cache_key = ?`, key)
	return err
}

func (s *SQLite) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_cache`)
	return err
}

func (s *SQLite) DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE cache_key = ? AND cached_at + ttl_ms * 1000000 <= ?`,
		key, now.UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLite) Purge(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE cached_at + ttl_ms * 1000000 <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Name() string { return "sqlite" }
