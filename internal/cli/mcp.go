package cli

import (
	"fmt"

	"genai-studio/common"
	"genai-studio/internal/tools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the studio tools as an MCP server over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout 被 stdio 传输占用
	a, err := newApp(common.ReserveStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	s := newMCPServer()
	if err := tools.RegisterStudioTools(s, a.session); err != nil {
		return fmt.Errorf("failed to register studio tools: %w", err)
	}

	common.Info("MCP server starting on stdio")
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
