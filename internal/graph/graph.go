// Package graph answers dependency-impact questions over the stored code
// graph: who defines a symbol, who calls it, and what depends on a file.
//
// Every query is read-only, safe for concurrent use, and fail-open: a store
// error is logged and yields an empty result. Callers must treat an empty
// result as "no information", never as confirmed absence.
package graph

import (
	"context"
	"log/slog"

	"github.com/codegraph/codegraph/internal/store"
)

// Engine runs read-only queries against an injected store.
type Engine struct {
	store *store.Store
}

// New creates a query engine over the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// DefinitionsOf returns the files that directly DEFINE a Function with the
// given name. Methods are DEFINED by their Module rather than the file, so
// only top-level functions match here.
func (e *Engine) DefinitionsOf(ctx context.Context, corpus, symbol string) []string {
	return e.filePaths(ctx, "query.definitions", `
		SELECT DISTINCT f.file_path
		FROM nodes f
		JOIN edges d ON d.source_id = f.id AND d.type = 'DEFINES'
		JOIN nodes fn ON fn.id = d.target_id AND fn.label = 'Function'
		WHERE f.corpus = ? AND f.label = 'File' AND fn.name = ?
		ORDER BY f.file_path`,
		corpus, symbol)
}

// CallersOf returns the files owning a Function with a CALLS edge to any
// Function of the given name. Call resolution is name-based, not scope- or
// type-aware: same-named functions in different files share callers, and the
// result is the union across every matching callee. This imprecision is
// deliberate.
func (e *Engine) CallersOf(ctx context.Context, corpus, symbol string) []string {
	return e.filePaths(ctx, "query.callers", `
		SELECT DISTINCT caller.file_path
		FROM nodes caller
		JOIN edges c ON c.source_id = caller.id AND c.type = 'CALLS'
		JOIN nodes callee ON callee.id = c.target_id AND callee.label = 'Function'
		WHERE caller.corpus = ? AND caller.label = 'Function'
		  AND callee.name = ? AND caller.file_path <> ''
		ORDER BY caller.file_path`,
		corpus, symbol)
}

// AttributeCallersOf returns the files owning a Function with a CALLS_ATTR
// edge to an AttributeCall of the given name. This captures receiver-style
// calls (self.x(), obj.x()) that CallersOf cannot see, without knowing which
// concrete method is meant.
func (e *Engine) AttributeCallersOf(ctx context.Context, corpus, attr string) []string {
	return e.filePaths(ctx, "query.attr_callers", `
		SELECT DISTINCT caller.file_path
		FROM nodes caller
		JOIN edges c ON c.source_id = caller.id AND c.type = 'CALLS_ATTR'
		JOIN nodes attr ON attr.id = c.target_id AND attr.label = 'AttributeCall'
		WHERE caller.corpus = ? AND caller.label = 'Function'
		  AND attr.name = ? AND caller.file_path <> ''
		ORDER BY caller.file_path`,
		corpus, attr)
}

// DependentsOf returns the union of files that IMPORT a Module defined by
// the given file and files owning a Function that CALLS a Function defined
// by it. This is a two-hop pattern, not a transitive closure: callers needing
// deeper impact analysis iterate externally.
func (e *Engine) DependentsOf(ctx context.Context, corpus, filePath string) []string {
	return e.filePaths(ctx, "query.dependents", `
		SELECT DISTINCT dep.file_path AS path
		FROM nodes f
		JOIN edges d ON d.source_id = f.id AND d.type = 'DEFINES'
		JOIN nodes m ON m.id = d.target_id AND m.label = 'Module'
		JOIN edges i ON i.target_id = m.id AND i.type = 'IMPORTS'
		JOIN nodes dep ON dep.id = i.source_id AND dep.label = 'File'
		WHERE f.corpus = ? AND f.label = 'File' AND f.file_path = ?
		UNION
		SELECT DISTINCT caller.file_path AS path
		FROM nodes f
		JOIN edges d ON d.source_id = f.id AND d.type = 'DEFINES'
		JOIN nodes fn ON fn.id = d.target_id AND fn.label = 'Function'
		JOIN edges c ON c.target_id = fn.id AND c.type = 'CALLS'
		JOIN nodes caller ON caller.id = c.source_id AND caller.label = 'Function'
		WHERE f.corpus = ? AND f.label = 'File' AND f.file_path = ?
		  AND caller.file_path <> ''
		ORDER BY path`,
		corpus, filePath, corpus, filePath)
}

// filePaths runs a query returning a single file-path column. Errors are
// logged and produce an empty result.
func (e *Engine) filePaths(ctx context.Context, event, query string, args ...any) []string {
	rows, err := e.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		slog.Warn(event+".err", "err", err)
		return nil
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			slog.Warn(event+".err", "err", err)
			return nil
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		slog.Warn(event+".err", "err", err)
		return nil
	}
	return paths
}
