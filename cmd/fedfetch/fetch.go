package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hanpama/fedfetch/internal/fetch"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/server"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var configPath string
	var pretty bool
	cmd := &cobra.Command{
		Use:   "fetch [flags] <request file | ->",
		Short: "Execute one fetch node and print its response",
		Long: `fetch reads a JSON object with the fetch node under "node", the data fetched
so far under "data", the node's position under "currentDir" and the client
request under "request". It prints the node's response tree and errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var in server.FetchRequest
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("decode request: %w", err)
			}
			if in.Node == nil {
				return errors.New(`request has no "node"`)
			}
			if in.Request == nil {
				in.Request = &graphql.Request{Variables: map[string]any{}}
			}

			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.dispatcher.Fetch(cmd.Context(), &fetch.Request{
				Node:       in.Node,
				Supergraph: in.Request,
				Data:       in.Data,
				CurrentDir: in.CurrentDir,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(server.Result{Data: res.Data, Errors: res.Errors})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "fedfetch.yaml", "File path of the configuration")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}
