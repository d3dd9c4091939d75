package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds a fresh command tree so tests can run commands
// repeatedly.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fedfetch",
		Short: "Execute federated query plan fetch nodes",
		Long: `fedfetch runs the fetch nodes of a federated query plan against subgraph
services. It resolves a node's variables from data fetched so far, sends one
request to the node's subgraph and maps the response back into the client
response tree.`,
		Example: `  # Check an operation against a subgraph schema
  fedfetch validate -s reviews.graphql query.graphql

  # Execute one fetch node read from stdin
  fedfetch fetch -c fedfetch.yaml - < node.json

  # Serve POST /fetch
  fedfetch serve -c fedfetch.yaml`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}
