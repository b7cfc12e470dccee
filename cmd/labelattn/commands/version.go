package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/born-ml/labelattn/internal/backend/webgpu"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "labelattn %s (%s %s/%s, webgpu available: %t)\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, webgpu.IsAvailable())
			return nil
		},
	}
}
