package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// UpsertNode inserts or updates a node (merge-if-absent keyed by node_key).
// A node merged twice keeps the last-written values for declared fields.
func (s *Store) UpsertNode(n *Node) (int64, error) {
	if n.Key == "" {
		n.Key = NodeKey(n.Label, n.Name, n.FilePath)
	}
	_, err := s.q.Exec(`
		INSERT INTO nodes (corpus, label, name, file_path, node_key, properties)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(corpus, node_key) DO UPDATE SET
			label=excluded.label, name=excluded.name,
			file_path=excluded.file_path, properties=excluded.properties`,
		n.Corpus, n.Label, n.Name, n.FilePath, n.Key, marshalProps(n.Properties))
	if err != nil {
		return 0, fmt.Errorf("upsert node: %w", err)
	}
	// When ON CONFLICT DO UPDATE fires, last_insert_rowid() keeps whatever
	// the previous insert set — a stale non-zero value, not 0 — so the ID
	// is always looked up by key.
	var id int64
	err = s.q.QueryRow(`SELECT id FROM nodes WHERE corpus=? AND node_key=?`, n.Corpus, n.Key).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get node id: %w", err)
	}
	return id, nil
}

// SQLite allows at most 999 bind variables per statement.
const numNodeCols = 6
const nodesBatchSize = 999 / numNodeCols

// UpsertNodeBatch upserts nodes in chunked multi-row INSERTs and returns a
// node_key → ID map for edge resolution.
func (s *Store) UpsertNodeBatch(nodes []*Node) (map[string]int64, error) {
	idMap := make(map[string]int64, len(nodes))
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := i + nodesBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if err := s.upsertNodeChunk(nodes[i:end], idMap); err != nil {
			return nil, err
		}
	}
	return idMap, nil
}

func (s *Store) upsertNodeChunk(batch []*Node, idMap map[string]int64) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (corpus, label, name, file_path, node_key, properties) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	for i, n := range batch {
		if n.Key == "" {
			n.Key = NodeKey(n.Label, n.Name, n.FilePath)
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?)")
		args = append(args, n.Corpus, n.Label, n.Name, n.FilePath, n.Key, marshalProps(n.Properties))
	}
	sb.WriteString(` ON CONFLICT(corpus, node_key) DO UPDATE SET
		label=excluded.label, name=excluded.name,
		file_path=excluded.file_path, properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert node batch: %w", err)
	}

	byCorpus := make(map[string][]string)
	for _, n := range batch {
		byCorpus[n.Corpus] = append(byCorpus[n.Corpus], n.Key)
	}
	for corpus, keys := range byCorpus {
		if err := s.resolveNodeIDs(corpus, keys, idMap); err != nil {
			return err
		}
	}
	return nil
}

// resolveNodeIDs fetches IDs for a set of node keys, chunking the IN clause
// to stay under the bind-variable limit.
func (s *Store) resolveNodeIDs(corpus string, keys []string, idMap map[string]int64) error {
	const maxKeysPerQuery = 998

	for i := 0; i < len(keys); i += maxKeysPerQuery {
		end := i + maxKeysPerQuery
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)+1)
		args = append(args, corpus)
		for j, key := range chunk {
			placeholders[j] = "?"
			args = append(args, key)
		}

		query := fmt.Sprintf(`SELECT id, node_key FROM nodes WHERE corpus=? AND node_key IN (%s)`,
			strings.Join(placeholders, ","))

		if err := func() error {
			rows, err := s.q.Query(query, args...)
			if err != nil {
				return fmt.Errorf("resolve node IDs: %w", err)
			}
			defer rows.Close()
			for rows.Next() {
				var id int64
				var key string
				if err := rows.Scan(&id, &key); err != nil {
					return err
				}
				idMap[key] = id
			}
			return rows.Err()
		}(); err != nil {
			return err
		}
	}
	return nil
}

// FindNodeByKey finds a node by corpus and node key, or nil.
func (s *Store) FindNodeByKey(corpus, key string) (*Node, error) {
	row := s.q.QueryRow(`SELECT id, corpus, label, name, file_path, node_key, properties
		FROM nodes WHERE corpus=? AND node_key=?`, corpus, key)
	return scanNode(row)
}

// FindNodesByName finds nodes by corpus, label and name.
func (s *Store) FindNodesByName(corpus, label, name string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, corpus, label, name, file_path, node_key, properties
		FROM nodes WHERE corpus=? AND label=? AND name=?`, corpus, label, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByFile finds all nodes defined in a given file.
func (s *Store) FindNodesByFile(corpus, filePath string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, corpus, label, name, file_path, node_key, properties
		FROM nodes WHERE corpus=? AND file_path=?`, corpus, filePath)
	if err != nil {
		return nil, fmt.Errorf("find by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in a corpus.
func (s *Store) CountNodes(corpus string) (int, error) {
	var count int
	err := s.q.QueryRow(`SELECT COUNT(*) FROM nodes WHERE corpus=?`, corpus).Scan(&count)
	return count, err
}

// CountNodesByLabel returns node counts grouped by label.
func (s *Store) CountNodesByLabel(corpus string) (map[string]int, error) {
	rows, err := s.q.Query(`SELECT label, COUNT(*) FROM nodes WHERE corpus=? GROUP BY label`, corpus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		result[label] = count
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.Corpus, &n.Label, &n.Name, &n.FilePath, &n.Key, &props)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		var n Node
		var props string
		if err := rows.Scan(&n.ID, &n.Corpus, &n.Label, &n.Name, &n.FilePath, &n.Key, &props); err != nil {
			return nil, err
		}
		n.Properties = unmarshalProps(props)
		result = append(result, &n)
	}
	return result, rows.Err()
}
