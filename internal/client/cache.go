package client

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// maxCachedMessages caps how much transcript an anonymous widget keeps
	// per session; older rows are evicted first.
	maxCachedMessages = 50
	// cacheRetention bounds how long anonymous history survives locally.
	cacheRetention = 30 * 24 * time.Hour
	// sweepInterval spaces out full-expiry sweeps.
	sweepInterval = 7 * 24 * time.Hour
)

const (
	metaAnonymousToken = "anonymous_token"
	metaSessionID      = "session_id"
	metaLastSweep      = "last_sweep"
)

// CachedMessage mirrors a transcript entry in local storage. TempID is set
// only for optimistic sends that have not been confirmed yet.
type CachedMessage struct {
	SessionID  string
	MessageID  string
	TempID     string
	SenderType string
	Content    string
	CreatedAt  string
}

// LocalCache is the widget's durable store: one SQLite file holding the
// cached transcript and a small meta table (anonymous token, current
// session, last sweep time).
type LocalCache struct {
	db  *sql.DB
	now func() time.Time
}

func OpenCache(path string) (*LocalCache, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// One connection: the cache is a single local file (or :memory: in
	// tests, where every pooled connection would otherwise get its own db).
	db.SetMaxOpenConns(1)

	cache := &LocalCache{db: db, now: time.Now}
	if err := cache.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return cache, nil
}

func (c *LocalCache) migrate() error {
	_, err := c.db.Exec(`
CREATE TABLE IF NOT EXISTS messages (
	session_id  TEXT NOT NULL,
	message_id  TEXT NOT NULL DEFAULT '',
	temp_id     TEXT NOT NULL DEFAULT '',
	sender_type TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	stored_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, message_id);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("migrate cache: %w", err)
	}
	return nil
}

func (c *LocalCache) Close() error {
	return c.db.Close()
}

// SaveMessages replaces the cached transcript for a session with the given
// view, keeping only the newest maxCachedMessages rows.
func (c *LocalCache) SaveMessages(sessionID string, messages []CachedMessage) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear cached session: %w", err)
	}

	start := 0
	if len(messages) > maxCachedMessages {
		start = len(messages) - maxCachedMessages
	}
	storedAt := c.now().UTC().Format(time.RFC3339)
	for _, m := range messages[start:] {
		_, err := tx.Exec(
			`INSERT INTO messages (session_id, message_id, temp_id, sender_type, content, created_at, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, m.MessageID, m.TempID, m.SenderType, m.Content, m.CreatedAt, storedAt,
		)
		if err != nil {
			return fmt.Errorf("cache message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache write: %w", err)
	}
	return nil
}

// LoadMessages returns the cached transcript: confirmed rows ascending by
// id, then pending rows (empty message_id) in insertion order. Read errors
// come back as an empty slice plus the error so callers can fall back to a
// fresh view.
func (c *LocalCache) LoadMessages(sessionID string) ([]CachedMessage, error) {
	rows, err := c.db.Query(
		`SELECT session_id, message_id, temp_id, sender_type, content, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY message_id = '', message_id ASC, rowid ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cached messages: %w", err)
	}
	defer rows.Close()

	var out []CachedMessage
	for rows.Next() {
		var m CachedMessage
		if err := rows.Scan(&m.SessionID, &m.MessageID, &m.TempID, &m.SenderType, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cached message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *LocalCache) GetMeta(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %q: %w", key, err)
	}
	return value, nil
}

func (c *LocalCache) SetMeta(key, value string) error {
	_, err := c.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write meta %q: %w", key, err)
	}
	return nil
}

// Evict trims every session down to the cap. Used as the recovery step when
// a write fails for lack of space.
func (c *LocalCache) Evict() error {
	_, err := c.db.Exec(
		`DELETE FROM messages WHERE rowid IN (
			SELECT rowid FROM messages m
			WHERE rowid NOT IN (
				SELECT rowid FROM messages
				WHERE session_id = m.session_id
				ORDER BY message_id = '' DESC, message_id DESC, rowid DESC
				LIMIT ?
			)
		)`, maxCachedMessages,
	)
	if err != nil {
		return fmt.Errorf("evict cache: %w", err)
	}
	return nil
}

// SweepIfDue deletes rows older than the retention window, at most once per
// sweepInterval. Called opportunistically on open.
func (c *LocalCache) SweepIfDue() error {
	last, err := c.GetMeta(metaLastSweep)
	if err != nil {
		return err
	}
	now := c.now().UTC()
	if last != "" {
		if t, err := time.Parse(time.RFC3339, last); err == nil && now.Sub(t) < sweepInterval {
			return nil
		}
	}

	cutoff := now.Add(-cacheRetention).Format(time.RFC3339)
	if _, err := c.db.Exec(`DELETE FROM messages WHERE stored_at < ?`, cutoff); err != nil {
		return fmt.Errorf("sweep cache: %w", err)
	}
	return c.SetMeta(metaLastSweep, now.Format(time.RFC3339))
}

// Purge wipes everything, meta included. Runs on the anonymous to
// authenticated transition: no history carries across it.
func (c *LocalCache) Purge() error {
	if _, err := c.db.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	if _, err := c.db.Exec(`DELETE FROM meta`); err != nil {
		return fmt.Errorf("purge meta: %w", err)
	}
	return nil
}
