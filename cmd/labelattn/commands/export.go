package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/labelattn/internal/backend/cpu"
	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/serialization"
	"github.com/born-ml/labelattn/internal/tensor"
)

func newExportCmd(opts *options) *cobra.Command {
	var configPath, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the initialized parameters to a SafeTensors file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outPath == "" {
				return fmt.Errorf("--output is required")
			}
			s, err := loadSession(configPath, opts.logger)
			if err != nil {
				return err
			}
			if s.device == tensor.WebGPU {
				gpu, err := openWebGPU()
				if err != nil {
					return err
				}
				defer gpu.Release()
				return runExport(cmd, s, gpu, outPath)
			}
			return runExport(cmd, s, cpu.New(), outPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "run configuration (YAML)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "destination SafeTensors file")
	return cmd
}

func runExport[B tensor.Backend](cmd *cobra.Command, s *session, backend B, outPath string) error {
	att, err := build(s, backend, "")
	if err != nil {
		return err
	}

	f := &serialization.File{
		Tensors: att.StateDict(),
		Metadata: map[string]string{
			"variant":   att.Variant().String(),
			"num_heads": strconv.Itoa(att.NumHeads()),
			"seed":      strconv.FormatInt(s.cfg.Seed, 10),
		},
	}
	if err := serialization.WriteFile(outPath, f); err != nil {
		return err
	}

	params := att.Parameters()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tensors (%d parameters) to %s\n",
		len(params), nn.CountParameters(params), outPath)
	return nil
}
