package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrImageNotFound indicates no image is stored under the key.
var ErrImageNotFound = errors.New("image not found")

// Record describes a stored image.
type Record struct {
	Key     string
	Name    string
	Size    int
	Created time.Time
}

// Store persists synthesized images in a SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenStore opens (creating if needed) the image store at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an image, replacing any previous one under the key.
func (s *Store) Put(key, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO images (key, name, data, created) VALUES (?, ?, ?, ?)",
		key, name, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving image %s: %w", key, err)
	}
	return nil
}

// Lookup returns the image stored under key.
func (s *Store) Lookup(key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM images WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("querying image %s: %w", key, err)
	}
	return data, nil
}

// List returns every stored record ordered by name.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query("SELECT key, name, length(data), created FROM images ORDER BY name, key")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.Key, &r.Name, &r.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		r.Created = time.Unix(created, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes the image stored under key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM images WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting image %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrImageNotFound
	}
	return nil
}
