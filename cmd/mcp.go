package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP stdio server backed by a running issue API",
	Long: `Start an MCP (Model Context Protocol) server on stdio. Tool calls are
forwarded to the server at api_url, so 'issuetracker serve' must be running.

Configure an MCP client with:

  {
    "mcpServers": {
      "issues": { "command": "issuetracker", "args": ["mcp"] }
    }
  }

Available tools: projects_list, issues_list, issues_create, issues_update,
issues_delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(apiClient(), buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
