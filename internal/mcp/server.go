package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/ghwatch/internal/models"
)

const defaultRunLimit = 20

// StateReader loads the persisted watermark state.
type StateReader interface {
	Load(ctx context.Context) (models.State, error)
}

// RunLister lists recorded monitor runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// Server exposes ghwatch state and run history as read-only MCP tools.
type Server struct {
	state StateReader
	runs  RunLister
	repos []models.RepoConfig
}

// NewServer creates the MCP server wrapper. runs may be nil when run
// history is disabled.
func NewServer(state StateReader, runs RunLister, repos []models.RepoConfig) *Server {
	return &Server{state: state, runs: runs, repos: repos}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("ghwatch", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listReposTool())
	srv.AddTool(s.listWatermarksTool())
	srv.AddTool(s.listRunsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ghwatch_list_repos
func (s *Server) listReposTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("ghwatch_list_repos",
		mcp.WithDescription("List the monitored repositories and the activity types watched on each."),
	)
	return tool, s.handleListRepos
}

func (s *Server) handleListRepos(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type repoOut struct {
		Name         string              `json:"name"`
		MonitorTypes []models.SourceType `json:"monitor_types"`
	}

	out := make([]repoOut, len(s.repos))
	for i, r := range s.repos {
		out[i] = repoOut{Name: r.Name, MonitorTypes: r.MonitorTypes}
	}
	return jsonResult(out)
}

// ghwatch_list_watermarks
func (s *Server) listWatermarksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("ghwatch_list_watermarks",
		mcp.WithDescription("List the last-seen activity timestamp per repository and activity type. Activity at or before a watermark is not notified again."),
		mcp.WithString("repo", mcp.Description("Filter by repository (owner/name)")),
	)
	return tool, s.handleListWatermarks
}

func (s *Server) handleListWatermarks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo := request.GetString("repo", "")

	state, err := s.state.Load(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load state: %v", err)), nil
	}

	type watermarkOut struct {
		Repo          string            `json:"repo"`
		SourceType    models.SourceType `json:"source_type"`
		LastTimestamp time.Time         `json:"last_timestamp"`
	}

	out := []watermarkOut{}
	for name, rs := range state {
		if repo != "" && name != repo {
			continue
		}
		for t, ss := range rs {
			out = append(out, watermarkOut{Repo: name, SourceType: t, LastTimestamp: ss.LastTimestamp.UTC()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Repo != out[j].Repo {
			return out[i].Repo < out[j].Repo
		}
		return out[i].SourceType < out[j].SourceType
	})
	return jsonResult(out)
}

// ghwatch_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("ghwatch_list_runs",
		mcp.WithDescription("List recent monitor runs, newest first, with status and item counts."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.runs == nil {
		return mcp.NewToolResultError("run history is disabled (history.enabled: false)"), nil
	}
	limit := request.GetInt("limit", defaultRunLimit)
	if limit <= 0 {
		limit = defaultRunLimit
	}

	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	type runOut struct {
		ID         string           `json:"id"`
		StartedAt  time.Time        `json:"started_at"`
		FinishedAt time.Time        `json:"finished_at"`
		Status     models.RunStatus `json:"status"`
		Fetched    int              `json:"fetched"`
		Notified   int              `json:"notified"`
		StateSaved bool             `json:"state_saved"`
		Error      string           `json:"error,omitempty"`
	}

	out := make([]runOut, len(runs))
	for i, r := range runs {
		out[i] = runOut{
			ID:         r.ID,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Status:     r.Status,
			Fetched:    r.Fetched,
			Notified:   r.Notified,
			StateSaved: r.StateSaved,
			Error:      r.Error,
		}
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
