package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const maxBusyTimeoutMs = 5000

// Record is one persisted cache entry.
type Record struct {
	Path      string
	Value     []byte
	UpdatedAt time.Time
}

// Store persists records by path. A Put replaces the whole record.
type Store interface {
	Get(path string) (Record, bool, error)
	Put(rec Record) error
	Delete(path string) (bool, error)
	DeletePrefix(prefix string) (int, error)
	Paths(prefix string) ([]string, error)
	Close() error
}

// SQLiteStore keeps records in a single sqlite table so they survive
// restarts.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	file string
}

func NewSQLiteStore(file string) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, file: absPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
		path TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(path string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		value []byte
		ts    int64
	)
	err := s.db.QueryRow(`SELECT value, updated_at FROM cache_entries WHERE path = ?`, path).Scan(&value, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", path, err)
	}
	return Record{Path: path, Value: value, UpdatedAt: time.Unix(0, ts)}, true, nil
}

func (s *SQLiteStore) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO cache_entries (path, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		rec.Path, rec.Value, rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Path, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// prefixRange turns a path prefix into a where clause over the byte order
// of the path column.
func prefixRange(prefix string) (string, []interface{}) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return `path >= ? AND path < ?`, []interface{}{prefix, string(b[:i+1])}
		}
	}
	return `path >= ?`, []interface{}{prefix}
}

func (s *SQLiteStore) DeletePrefix(prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := prefixRange(prefix)
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", prefix, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Paths(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := prefixRange(prefix)
	rows, err := s.db.Query(`SELECT path FROM cache_entries WHERE `+where+` ORDER BY path`, args...)
	if err != nil {
		return nil, fmt.Errorf("paths %s: %w", prefix, err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// MemoryStore is a Store that lives as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(path string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[path]
	return rec, ok, nil
}

func (m *MemoryStore) Put(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Path] = rec
	return nil
}

func (m *MemoryStore) Delete(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[path]
	delete(m.records, path)
	return ok, nil
}

func (m *MemoryStore) DeletePrefix(prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for p := range m.records {
		if strings.HasPrefix(p, prefix) {
			delete(m.records, p)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Paths(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0)
	for p := range m.records {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
