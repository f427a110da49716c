package localcache

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

// BalanceKey is the single key the wallet mirrors for offline reads.
const BalanceKey = "walletBalance"

// Cache is a durable local key-value store. It is a fallback mirror, always
// overwritable, never read-modify-written.
type Cache struct {
	db *sql.DB
}

// Open creates a Cache backed by the sqlite file at path and initializes
// the schema.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) init() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	return err
}

// Get returns the value stored under key, or ErrNotFound.
func (c *Cache) Get(key string) (string, error) {
	var value string
	err := c.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (c *Cache) Set(key, value string) error {
	_, err := c.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
