package cli

import (
	"fmt"
	"io"

	"authorities/internal/config"
	"authorities/internal/version"

	"github.com/spf13/cobra"
)

// NewExampleConfigCommand creates the example-config command.
func NewExampleConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "example-config <path>",
		Short: "Write an example configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveExample(args[0]); err != nil {
				return err
			}
			return rootOpts.write(cmd.OutOrStdout(), map[string]string{"path": args[0]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Example configuration written to %s\n", args[0])
				return err
			})
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			return rootOpts.write(cmd.OutOrStdout(), info, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, info.String())
				return err
			})
		},
	}
}
