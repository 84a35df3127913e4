// Package cache persists raw partition payloads in a local SQLite database
// so a returning session can revalidate by ETag instead of re-downloading
// multi-megabyte partition files.
package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements partition.PayloadCache using modernc.org/sqlite.
type SQLiteCache struct {
	db *sql.DB
}

// Open opens (or creates) the payload cache at the given path and runs the
// schema migration. WAL mode keeps concurrent region fetches from blocking
// each other on writes.
func Open(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS payloads (
	url        TEXT PRIMARY KEY,
	etag       TEXT NOT NULL DEFAULT '',
	body       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL
);
`

func (c *SQLiteCache) migrate() error {
	_, err := c.db.Exec(migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get returns the cached body and ETag for a URL. ok is false on a miss.
func (c *SQLiteCache) Get(ctx context.Context, url string) ([]byte, string, bool, error) {
	var (
		body []byte
		etag string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT body, etag FROM payloads WHERE url = ?`, url,
	).Scan(&body, &etag)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, eris.Wrap(err, "cache: get")
	}
	return body, etag, true, nil
}

// Put stores or replaces the cached body and ETag for a URL.
func (c *SQLiteCache) Put(ctx context.Context, url, etag string, body []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO payloads (url, etag, body, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			etag = excluded.etag,
			body = excluded.body,
			fetched_at = excluded.fetched_at`,
		url, etag, body, time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}

// Prune removes entries not fetched since the given cutoff and returns the
// number removed.
func (c *SQLiteCache) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM payloads WHERE fetched_at < ?`, olderThan.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune rows affected")
	}
	return n, nil
}
