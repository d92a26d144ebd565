package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// InsertEdge inserts an edge (dedup by source, target, type).
func (s *Store) InsertEdge(e *Edge) error {
	_, err := s.q.Exec(`
		INSERT INTO edges (corpus, source_id, target_id, type, properties)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO NOTHING`,
		e.Corpus, e.SourceID, e.TargetID, e.Type, marshalProps(e.Properties))
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}

const numEdgeCols = 5
const edgesBatchSize = 999 / numEdgeCols

// InsertEdgeBatch inserts edges in chunked multi-row INSERTs. Duplicate
// (source, target, type) triples are ignored, which makes re-merging a batch
// idempotent.
func (s *Store) InsertEdgeBatch(edges []*Edge) error {
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := i + edgesBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		if err := s.insertEdgeChunk(edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertEdgeChunk(batch []*Edge) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (corpus, source_id, target_id, type, properties) VALUES `)

	args := make([]any, 0, len(batch)*numEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?)")
		args = append(args, e.Corpus, e.SourceID, e.TargetID, e.Type, marshalProps(e.Properties))
	}
	sb.WriteString(` ON CONFLICT(source_id, target_id, type) DO NOTHING`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert edge batch: %w", err)
	}
	return nil
}

// FindEdgesBySourceAndType finds edges from a source with a specific type.
func (s *Store) FindEdgesBySourceAndType(sourceID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT id, corpus, source_id, target_id, type, properties
		FROM edges WHERE source_id=? AND type=?`, sourceID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by source+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTargetAndType finds edges to a target with a specific type.
func (s *Store) FindEdgesByTargetAndType(targetID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT id, corpus, source_id, target_id, type, properties
		FROM edges WHERE target_id=? AND type=?`, targetID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by target+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges in a corpus.
func (s *Store) CountEdges(corpus string) (int, error) {
	var count int
	err := s.q.QueryRow(`SELECT COUNT(*) FROM edges WHERE corpus=?`, corpus).Scan(&count)
	return count, err
}

// CountEdgesByType returns edge counts grouped by type.
func (s *Store) CountEdgesByType(corpus string) (map[string]int, error) {
	rows, err := s.q.Query(`SELECT type, COUNT(*) FROM edges WHERE corpus=? GROUP BY type`, corpus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]int)
	for rows.Next() {
		var edgeType string
		var count int
		if err := rows.Scan(&edgeType, &count); err != nil {
			return nil, err
		}
		result[edgeType] = count
	}
	return result, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var props string
		if err := rows.Scan(&e.ID, &e.Corpus, &e.SourceID, &e.TargetID, &e.Type, &props); err != nil {
			return nil, err
		}
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
