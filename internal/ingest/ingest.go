// Package ingest orchestrates a full corpus rebuild: walk the corpus, parse
// every supported file, and merge the accumulated facts into the graph
// store. There is no incremental path — each run clears the prior corpus
// subgraph and rebuilds it from scratch.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph/codegraph/internal/discover"
	"github.com/codegraph/codegraph/internal/parser"
	"github.com/codegraph/codegraph/internal/store"
)

// Ingestor drives walker → parser → store for one corpus.
type Ingestor struct {
	store *store.Store

	// Workers bounds the parallel parse stage; 0 means NumCPU.
	Workers int
	// IgnoreFile overrides the default <root>/.codegraphignore.
	IgnoreFile string
}

// Stats summarizes one completed ingestion run.
type Stats struct {
	Files       int    `json:"files"`
	Skipped     int    `json:"skipped"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Fingerprint string `json:"fingerprint"`
}

// New creates an Ingestor writing to the given store.
func New(s *store.Store) *Ingestor {
	return &Ingestor{store: s}
}

// fileResult holds the output of one file's read+parse, produced in
// parallel with no shared state and merged sequentially.
type fileResult struct {
	File   discover.FileInfo
	Digest string
	Res    parser.Result
	Err    error
}

// Ingest performs a full rebuild of the corpus subgraph. Per-file read and
// parse errors are logged and skipped; store errors abort the run. The
// delete in step one and the later batch writes are separate transactions,
// so a concurrent reader may observe an empty or partially-populated graph
// until the run completes.
func (ing *Ingestor) Ingest(ctx context.Context, root, corpus string) (*Stats, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	slog.Info("ingest.start", "corpus", corpus, "root", root)

	if err := ing.store.UpsertCorpus(corpus, root); err != nil {
		return nil, err
	}
	if err := ing.store.ClearCorpus(corpus); err != nil {
		return nil, fmt.Errorf("clear corpus: %w", err)
	}
	ing.store.EnsureIndexes()

	files, err := discover.Discover(ctx, root, &discover.Options{IgnoreFile: ing.IgnoreFile})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("ingest.discovered", "files", len(files))

	results, err := ing.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	if err := ing.store.WithTransaction(func(tx *store.Store) error {
		return merge(tx, corpus, results, stats)
	}); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	stats.Fingerprint = fingerprint(results)
	if err := ing.store.SetFingerprint(corpus, stats.Fingerprint); err != nil {
		return nil, fmt.Errorf("set fingerprint: %w", err)
	}

	slog.Info("ingest.done",
		"corpus", corpus, "files", stats.Files, "skipped", stats.Skipped,
		"nodes", stats.Nodes, "edges", stats.Edges)
	return stats, nil
}

// parseAll reads and parses files in parallel. Parsing is stateless per
// file, so the only ordering that matters is the merge stage afterwards.
func (ing *Ingestor) parseAll(ctx context.Context, files []discover.FileInfo) ([]*fileResult, error) {
	results := make([]*fileResult, len(files))

	workers := ing.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseFile reads one file and extracts its facts. A read failure is
// recorded on the result; a syntax error yields an empty Result with no
// error (the file still gets its File node).
func parseFile(f discover.FileInfo) *fileResult {
	r := &fileResult{File: f}
	content, err := os.ReadFile(f.Path)
	if err != nil {
		r.Err = err
		return r
	}
	r.Digest = fmt.Sprintf("%016x", xxh3.Hash(content))
	r.Res = parser.Extract(content, f.RelPath)
	return r
}

// merge writes the accumulated batch: definition nodes first, then edges,
// so every edge ref resolves against the complete definition set and the
// outcome does not depend on file order. Missing endpoints become ghost
// nodes flagged inferred.
func merge(tx *store.Store, corpus string, results []*fileResult, stats *Stats) error {
	var nodes []*store.Node
	seen := make(map[string]bool)

	add := func(n *store.Node) {
		n.Key = store.NodeKey(n.Label, n.Name, n.FilePath)
		if seen[n.Key] {
			return
		}
		seen[n.Key] = true
		nodes = append(nodes, n)
	}

	for _, r := range results {
		if r.Err != nil {
			slog.Warn("ingest.file.skip", "path", r.File.RelPath, "err", r.Err)
			stats.Skipped++
			continue
		}
		stats.Files++
		add(&store.Node{
			Corpus:   corpus,
			Label:    "File",
			Name:     filepath.Base(r.File.RelPath),
			FilePath: r.File.RelPath,
			Properties: map[string]any{
				"repo":     corpus,
				"language": string(r.File.Language),
				"digest":   r.Digest,
			},
		})
		for _, n := range r.Res.Nodes {
			sn := &store.Node{
				Corpus:   corpus,
				Label:    n.Label,
				Name:     n.Name,
				FilePath: n.Path,
			}
			if n.Scope != "" {
				sn.Properties = map[string]any{"scope": n.Scope}
			}
			add(sn)
		}
	}

	idMap, err := tx.UpsertNodeBatch(nodes)
	if err != nil {
		return err
	}

	res := newResolver(tx, corpus, nodes, idMap)
	edges, err := res.resolveEdges(results)
	if err != nil {
		return err
	}
	if err := tx.InsertEdgeBatch(edges); err != nil {
		return err
	}

	stats.Nodes = len(idMap)
	stats.Edges = len(edges)
	return nil
}

// fingerprint hashes the sorted (path, digest) pairs of a build so the
// watcher can tell whether a tree actually changed since the last rebuild.
func fingerprint(results []*fileResult) string {
	pairs := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			pairs = append(pairs, r.File.RelPath+"\x00"+r.Digest)
		}
	}
	sort.Strings(pairs)

	h := xxh3.New()
	for _, p := range pairs {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
