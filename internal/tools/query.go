package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleFindDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "function_name")
	if name == "" {
		return errResult("function_name is required"), nil
	}

	paths := s.engine.DefinitionsOf(ctx, s.corpusArg(args), name)
	return jsonResult(map[string]any{
		"function": name,
		"files":    paths,
	}), nil
}

func (s *Server) handleFindCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "function_name")
	if name == "" {
		return errResult("function_name is required"), nil
	}

	paths := s.engine.CallersOf(ctx, s.corpusArg(args), name)
	return jsonResult(map[string]any{
		"function": name,
		"files":    paths,
	}), nil
}

func (s *Server) handleFindAttrCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "attribute_name")
	if name == "" {
		return errResult("attribute_name is required"), nil
	}

	paths := s.engine.AttributeCallersOf(ctx, s.corpusArg(args), name)
	return jsonResult(map[string]any{
		"attribute": name,
		"files":     paths,
	}), nil
}

func (s *Server) handleFindDependents(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	path := getStringArg(args, "file_path")
	if path == "" {
		return errResult("file_path is required"), nil
	}

	paths := s.engine.DependentsOf(ctx, s.corpusArg(args), path)
	return jsonResult(map[string]any{
		"file":       path,
		"dependents": paths,
	}), nil
}
