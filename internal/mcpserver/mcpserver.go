// Package mcpserver exposes the search engine to AI assistants over the
// Model Context Protocol, using the official SDK's typed tool handlers.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arashk/dirdex/internal/searchengine"
	"github.com/arashk/dirdex/internal/version"
)

// FindInput is the input for dirdex_find.
type FindInput struct {
	Query string `json:"query" jsonschema:"The text to search for across the indexed directory tree."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of matching lines to return (default: 50)."`
}

// StatusInput is the input for dirdex_status (empty).
type StatusInput struct{}

const defaultFindLimit = 50

// Server wraps the official MCP SDK server around one search Engine.
type Server struct {
	server *sdkmcp.Server
	engine *searchengine.Engine
}

// New creates an MCP server exposing dirdex_find and dirdex_status.
func New(engine *searchengine.Engine) *Server {
	s := &Server{engine: engine}

	s.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "dirdex",
		Version: version.Short(),
	}, &sdkmcp.ServerOptions{
		Instructions: "dirdex indexes a directory tree in memory and answers substring " +
			"queries over it. Use dirdex_status to check whether the initial scan has " +
			"finished before trusting dirdex_find results as complete.",
	})

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "dirdex_find",
		Description: "Search the indexed directory tree for lines containing the query text. Results are verified against the files on disk before being returned.",
	}, s.handleFind)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "dirdex_status",
		Description: "Get the index's current progress: files indexed, tokens known, and whether the initial scan has completed.",
	}, s.handleStatus)

	return s
}

// Run starts the MCP server over stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) handleFind(ctx context.Context, req *sdkmcp.CallToolRequest, input FindInput) (*sdkmcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "Error: 'query' parameter is required."}},
			IsError: true,
		}, nil, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultFindLimit
	}

	findCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	matches, warnings := s.engine.Find(findCtx, input.Query)

	var lines []string
	for m := range matches {
		lines = append(lines, fmt.Sprintf("%s:%d: %s", m.Path, m.LineNo, m.Line))
		if len(lines) >= limit {
			cancel() // enough matches: unblock the producer and stop early
			break
		}
	}
	for range matches {
		// drain whatever the producer sends before it observes cancel()
	}

	var warns []string
	for w := range warnings {
		warns = append(warns, w)
	}

	text := strings.Join(lines, "\n")
	if text == "" {
		text = "no matches"
	}
	for _, w := range warns {
		text = fmt.Sprintf("(%s)\n%s", w, text)
	}

	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}, nil, nil
}

func (s *Server) handleStatus(ctx context.Context, req *sdkmcp.CallToolRequest, input StatusInput) (*sdkmcp.CallToolResult, any, error) {
	st := s.engine.Status(ctx)
	text := fmt.Sprintf(
		"indexed_files=%d known_tokens=%d handled_modifications=%d total_modifications=%d initial_sync_completed=%t broken=%t",
		st.IndexedFiles, st.KnownTokens, st.HandledModifications, st.TotalModifications, st.InitialSyncTime != nil, st.IsBroken,
	)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}, nil, nil
}
