package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexharvest/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve similarity search to MCP clients",
	Long: `Serve the harvested decisions to AI assistants over the Model Context Protocol.

Tools:
  similarity_search  decisions similar to a text or to a stored decision
  get_record         one decision with its full text and references

Resources:
  lexharvest://index/{kind}             index statistics for a kind
  lexharvest://records/{kind}/{serial}  one decision as JSON

The server speaks JSON-RPC over stdio unless --port is given, in which case
it serves streamable HTTP on that port.

Client configuration (stdio):
  {
    "mcpServers": {
      "lexharvest": {"command": "/path/to/lexharvest", "args": ["mcp", "serve"]}
    }
  }`,
	Example: `  lexharvest mcp serve
  lexharvest mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "serve streamable HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid --port %d", port)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:  similarityService,
		Records: recordService,
		Index:   indexService,
	}, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	if port == 0 {
		return server.Run(cmd.Context())
	}

	addr := fmt.Sprintf(":%d", port)
	fmt.Fprintf(cmd.ErrOrStderr(), "MCP server %s listening on http://localhost%s\n", server.Version(), addr)
	return server.RunHTTP(cmd.Context(), addr)
}
