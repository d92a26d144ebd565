package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph/codegraph/internal/ingest"
)

func (s *Server) handleIndexCorpus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	rootPath := getStringArg(args, "root_path")
	if rootPath == "" {
		return errResult("root_path is required"), nil
	}

	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	corpus := s.corpusArg(args)

	// Lock to prevent concurrent rebuilds with the watcher
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	ing := ingest.New(s.store)
	ing.Workers = s.workers
	stats, err := ing.Ingest(ctx, absPath, corpus)
	if err != nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"corpus":      corpus,
		"root_path":   absPath,
		"files":       stats.Files,
		"skipped":     stats.Skipped,
		"nodes":       stats.Nodes,
		"edges":       stats.Edges,
		"fingerprint": stats.Fingerprint,
	}), nil
}
