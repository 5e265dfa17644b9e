package main

import (
	couriermcp "github.com/hyperengineering/courier/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: `Start a Model Context Protocol server that reads JSON-RPC from stdin
and writes responses to stdout. Logs go to stderr.

Tools:
  courier_preferences      List every preference
  courier_set_preference   Change one preference
  courier_sync             Sync preferences, logs, or both
  courier_force_sync       Replace local preferences with the backend's
  courier_status           Show sync state and store statistics`,
	Example: `  # Claude Desktop / MCP client configuration
  {
    "mcpServers": {
      "courier": {
        "command": "courier",
        "args": ["mcp"],
        "env": {
          "COURIER_BACKEND_URL": "https://api.example.com",
          "COURIER_USER_ID": "42"
        }
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openClient(cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	return couriermcp.NewServer(s.client).Run()
}
