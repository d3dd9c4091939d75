package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hanpama/fedfetch/internal/operation"
	"github.com/hanpama/fedfetch/internal/schema"
	"github.com/spf13/cobra"
)

// errInvalid is returned when an operation is rejected. The reason has
// already been printed.
var errInvalid = errors.New("operation is not valid")

func newValidateCmd() *cobra.Command {
	var schemaPath, opName string
	cmd := &cobra.Command{
		Use:   "validate [flags] <operation file | ->",
		Short: "Check that an operation is well formed against a schema",
		Long: `validate parses an operation, builds its typed selection tree against the
schema and checks every structural invariant of the tree: each field and
fragment is bound to the schema and parent type it was built for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sdl, err := os.ReadFile(schemaPath)
			if err != nil {
				return err
			}
			s, err := schema.BuildFromSDL(schemaPath, string(sdl))
			if err != nil {
				return fmt.Errorf("schema: %w", err)
			}
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			op, err := operation.Parse(s, string(text), opName)
			if err == nil {
				err = op.IsWellFormed(s)
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return errInvalid
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "schema.graphql", "File path of the GraphQL schema")
	cmd.Flags().StringVarP(&opName, "operation-name", "o", "", "Operation to check when the document has several")
	return cmd
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
