package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joescharf/ghwatch/internal/mcp"
	"github.com/joescharf/ghwatch/internal/models"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client query ghwatch for the watched repositories, saved
watermarks and run history. Configure the client with:

  {
    "mcpServers": {
      "ghwatch": { "command": "ghwatch", "args": ["mcp"] }
    }
  }

Available tools: ghwatch_list_repos, ghwatch_list_watermarks,
ghwatch_list_runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStores(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	// The repo list is informational here; an incomplete config should not
	// keep the server from reporting local state.
	var repos []models.RepoConfig
	if cfg, err := loadConfig(); err == nil {
		repos = cfg.Repos
	} else {
		logger.Warn("config incomplete; repository list unavailable", "error", err)
	}

	var runs mcp.RunLister
	if s.history != nil {
		runs = s.history
	}
	return mcp.NewServer(s.state, runs, repos).ServeStdio(ctx)
}
