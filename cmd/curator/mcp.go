package main

import (
	curatormcp "github.com/hyperengineering/curator/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio, exposing the
curator operations as tools.

Example client configuration:

  {
    "mcpServers": {
      "curator": {
        "command": "curator",
        "args": ["mcp"],
        "env": {
          "CURATOR_STORE": "companion",
          "CURATOR_SAFETY_URL": "https://classifier.internal/v1/safety",
          "CURATOR_LOG_PATH": "/tmp/curator.log"
        }
      }
    }
  }

Logs go to stderr or CURATOR_LOG_PATH; stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	return curatormcp.NewServer(engine).Run()
}
