package cli

import (
	"errors"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/adapters/driving/mcp"
)

var (
	mcpPort     int
	mcpHost     string
	mcpReadOnly bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose retrieval to AI assistants over MCP",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Serve the search tool and the dossier://sources/{id} resource to MCP
clients. Ingestion tools (ingest_url, reprocess_source, get_source) are
offered unless --read-only is set.

Without --port the server speaks JSON-RPC over stdio. With --port it serves
streamable HTTP at / and Prometheus metrics at /metrics.

  dossier mcp serve
  dossier mcp serve --port 8080 --read-only

Sources are scoped to the owner given by --owner or DOSSIER_OWNER.`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 serves stdio)")
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "localhost", "HTTP bind host")
	mcpServeCmd.Flags().BoolVar(&mcpReadOnly, "read-only", false, "offer search and resources only")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// mcpPorts builds the server ports from the configured services.
func mcpPorts() *mcp.Ports {
	ports := &mcp.Ports{
		Retrieval: retrievalService,
		OwnerID:   ownerID(),
	}
	if !mcpReadOnly && ingestionService != nil {
		ports.Ingestion = ingestionService
	}
	return ports
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}
	if mcpPort < 0 || mcpPort > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	server, err := mcp.NewServer(mcpPorts(), version)
	if err != nil {
		return err
	}

	if mcpPort == 0 {
		return server.Run(cmd.Context())
	}
	addr := net.JoinHostPort(mcpHost, strconv.Itoa(mcpPort))
	cmd.Printf("MCP server listening on http://%s (metrics at /metrics)\n", addr)
	return server.RunHTTP(cmd.Context(), addr)
}
