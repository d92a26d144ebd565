package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph/codegraph/internal/graph"
	"github.com/codegraph/codegraph/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp     *mcp.Server
	store   *store.Store
	engine  *graph.Engine
	corpus  string
	workers int
	indexMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered.
// corpus is the default corpus tag used when a tool call omits one.
func NewServer(s *store.Store, corpus string, workers int) *Server {
	srv := &Server{
		store:   s,
		engine:  graph.New(s),
		corpus:  corpus,
		workers: workers,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "codegraph",
				Version: "0.1.0",
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	// 1. index_corpus
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_corpus",
		Description: "Rebuild the code graph for a source tree. Discovers source files, parses them, extracts functions/classes/imports/calls, and replaces the corpus contents in one pass. Always a full rebuild.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"root_path": {
					"type": "string",
					"description": "Absolute path to the source tree to index."
				},
				"corpus": {
					"type": "string",
					"description": "Corpus tag to index into. Defaults to the configured corpus."
				}
			},
			"required": ["root_path"]
		}`),
	}, s.handleIndexCorpus)

	// 2. find_definitions
	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_definitions",
		Description: "List the file paths that define a function with the given name. Method names are qualified as 'ClassName.method'.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"function_name": {
					"type": "string",
					"description": "Function name to look up (e.g. 'helper' or 'MyApp.run')"
				},
				"corpus": {
					"type": "string",
					"description": "Corpus tag to query. Defaults to the configured corpus."
				}
			},
			"required": ["function_name"]
		}`),
	}, s.handleFindDefinitions)

	// 3. find_callers
	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_callers",
		Description: "List the file paths containing functions that call the given function by name. Matches bare-name calls only; attribute calls are a separate tool.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"function_name": {
					"type": "string",
					"description": "Callee function name"
				},
				"corpus": {
					"type": "string",
					"description": "Corpus tag to query. Defaults to the configured corpus."
				}
			},
			"required": ["function_name"]
		}`),
	}, s.handleFindCallers)

	// 4. find_attr_callers
	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_attr_callers",
		Description: "List the file paths containing functions that invoke the given name as an attribute or method (e.g. obj.save()). Disjoint from find_callers.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"attribute_name": {
					"type": "string",
					"description": "Attribute or method name (e.g. 'save')"
				},
				"corpus": {
					"type": "string",
					"description": "Corpus tag to query. Defaults to the configured corpus."
				}
			},
			"required": ["attribute_name"]
		}`),
	}, s.handleFindAttrCallers)

	// 5. find_dependents
	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_dependents",
		Description: "Impact analysis for a file: list the file paths that import a class the file defines, or that call a function the file defines. Use before changing or deleting a file.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "Path of the file as it was indexed"
				},
				"corpus": {
					"type": "string",
					"description": "Corpus tag to query. Defaults to the configured corpus."
				}
			},
			"required": ["file_path"]
		}`),
	}, s.handleFindDependents)

	// 6. graph_schema
	s.mcp.AddTool(&mcp.Tool{
		Name:        "graph_schema",
		Description: "Return the shape of the indexed graph: node counts per label, edge counts per type, and corpus metadata (root path, indexed_at, fingerprint).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"corpus": {
					"type": "string",
					"description": "Corpus tag to inspect. Defaults to the configured corpus."
				}
			}
		}`),
	}, s.handleGraphSchema)
}

// corpusArg resolves the corpus tag from args, falling back to the default.
func (s *Server) corpusArg(args map[string]any) string {
	if c := getStringArg(args, "corpus"); c != "" {
		return c
	}
	return s.corpus
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
