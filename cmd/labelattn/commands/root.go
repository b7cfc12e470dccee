// Package commands implements the labelattn command tree.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridden at link time.
var Version = "v0.1.0-dev"

// options are shared by every subcommand.
type options struct {
	verbose bool
	logger  *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "labelattn",
		Short: "Label-centric attention for multi-label document classification",
		Long: `labelattn builds one of twelve label attention variants from a YAML run
configuration and runs it over encoded documents.

Commands:
  variants  List the attention variants and what they need
  forward   Run a forward pass and print the most attended tokens
  export    Write the initialized parameters to a SafeTensors file
  runs      List and inspect archived forward passes
  version   Version information

Examples:
  labelattn variants
  labelattn forward -c run.yaml --batch 2 --seq 64 --report run.msgpack
  labelattn export -c run.yaml -o params.safetensors
  labelattn forward -c run.yaml --params params.safetensors --input docs.safetensors
  labelattn forward -c run.yaml --store runs/ && labelattn runs list --store runs/`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newVariantsCmd(),
		newForwardCmd(opts),
		newExportCmd(opts),
		newRunsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
