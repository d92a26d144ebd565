package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleGraphSchema(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	corpus := s.corpusArg(args)

	labels, err := s.store.CountNodesByLabel(corpus)
	if err != nil {
		return errResult(fmt.Sprintf("schema: %v", err)), nil
	}
	types, err := s.store.CountEdgesByType(corpus)
	if err != nil {
		return errResult(fmt.Sprintf("schema: %v", err)), nil
	}

	out := map[string]any{
		"corpus":      corpus,
		"node_labels": labels,
		"edge_types":  types,
	}
	if c, getErr := s.store.GetCorpus(corpus); getErr == nil && c != nil {
		out["root_path"] = c.RootPath
		out["indexed_at"] = c.IndexedAt
		out["fingerprint"] = c.Fingerprint
	}
	return jsonResult(out), nil
}
