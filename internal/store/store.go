package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection holding the property graph. It is
// constructed once and injected into the ingestor and query engine, so tests
// can substitute an in-memory instance.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// Node is a graph node. The natural key per label is encoded in NodeKey:
// File by path, Module by (name, path), Function by (name, file),
// AttributeCall by name alone. Ghost nodes created only as edge endpoints
// carry empty key components and an "inferred" property.
type Node struct {
	ID         int64
	Corpus     string
	Label      string
	Name       string
	FilePath   string
	Key        string
	Properties map[string]any
}

// Edge is a directed, typed graph edge.
type Edge struct {
	ID         int64
	Corpus     string
	SourceID   int64
	TargetID   int64
	Type       string
	Properties map[string]any
}

// Corpus records one indexed source tree.
type Corpus struct {
	Tag         string
	RootPath    string
	IndexedAt   string
	Fingerprint string
}

// NodeKey computes the upsert key for a node from its natural key fields.
func NodeKey(label, name, filePath string) string {
	switch label {
	case "File":
		return "file|" + filePath
	case "AttributeCall":
		return "attr|" + name
	default:
		return label + "|" + name + "|" + filePath
	}
}

// Open opens or creates the graph database at dbPath, creating the parent
// directory if needed (the default location lives under the user cache dir).
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory graph database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// each pooled connection would get its own empty :memory: database
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single transaction. The callback
// receives a transaction-scoped Store; the receiver's q field is never
// mutated, so concurrent read-only queries are unaffected.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB (for read-only query joins).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS corpora (
		tag TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		indexed_at TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		corpus TEXT NOT NULL REFERENCES corpora(tag) ON DELETE CASCADE,
		label TEXT NOT NULL,
		name TEXT NOT NULL,
		file_path TEXT DEFAULT '',
		node_key TEXT NOT NULL,
		properties TEXT DEFAULT '{}',
		UNIQUE(corpus, node_key)
	);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		corpus TEXT NOT NULL REFERENCES corpora(tag) ON DELETE CASCADE,
		source_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		properties TEXT DEFAULT '{}',
		UNIQUE(source_id, target_id, type)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// EnsureIndexes creates the secondary indices backing the query patterns:
// File.path, Module.name, Function.name lookups and edge traversals. Index
// creation is best-effort; a failure is logged, never fatal.
func (s *Store) EnsureIndexes() {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_nodes_label_name ON nodes(corpus, label, name)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(corpus, label, file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(corpus, type)`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.Exec(stmt); err != nil {
			slog.Warn("store.index.skip", "err", err)
		}
	}
}

// UpsertCorpus inserts or refreshes a corpus record.
func (s *Store) UpsertCorpus(tag, rootPath string) error {
	_, err := s.q.Exec(`
		INSERT INTO corpora (tag, root_path, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET root_path=excluded.root_path, indexed_at=excluded.indexed_at`,
		tag, rootPath, Now())
	if err != nil {
		return fmt.Errorf("upsert corpus: %w", err)
	}
	return nil
}

// GetCorpus returns a corpus record, or nil if the tag is unknown.
func (s *Store) GetCorpus(tag string) (*Corpus, error) {
	var c Corpus
	err := s.q.QueryRow(`SELECT tag, root_path, indexed_at, fingerprint FROM corpora WHERE tag=?`, tag).
		Scan(&c.Tag, &c.RootPath, &c.IndexedAt, &c.Fingerprint)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCorpora returns all corpus records.
func (s *Store) ListCorpora() ([]*Corpus, error) {
	rows, err := s.q.Query(`SELECT tag, root_path, indexed_at, fingerprint FROM corpora ORDER BY tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Corpus
	for rows.Next() {
		var c Corpus
		if err := rows.Scan(&c.Tag, &c.RootPath, &c.IndexedAt, &c.Fingerprint); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// SetFingerprint records the content fingerprint of the last full build.
func (s *Store) SetFingerprint(tag, fingerprint string) error {
	_, err := s.q.Exec(`UPDATE corpora SET fingerprint=? WHERE tag=?`, fingerprint, tag)
	return err
}

// ClearCorpus deletes every node and edge tagged with the corpus. A rebuild
// always runs this first; there is no isolation between the delete and the
// subsequent writes, so a concurrent reader may observe a transiently empty
// graph.
func (s *Store) ClearCorpus(tag string) error {
	if _, err := s.q.Exec(`DELETE FROM edges WHERE corpus=?`, tag); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	if _, err := s.q.Exec(`DELETE FROM nodes WHERE corpus=?`, tag); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	return nil
}

// marshalProps serializes properties to JSON.
func marshalProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// unmarshalProps deserializes JSON properties.
func unmarshalProps(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
