package commands

import (
	"fmt"
	"math/rand"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/born-ml/labelattn/internal/backend/cpu"
	"github.com/born-ml/labelattn/internal/report"
	"github.com/born-ml/labelattn/internal/serialization"
	"github.com/born-ml/labelattn/internal/tensor"
)

// Tensor names read from a --input file.
const (
	inputKey = "h"
	pairKey  = "kv"
)

type forwardFlags struct {
	configPath string
	paramsPath string
	inputPath  string
	reportPath string
	storeDir   string
	batch      int
	seq        int
	inputSeed  int64
	top        int
}

func newForwardCmd(opts *options) *cobra.Command {
	flags := &forwardFlags{}
	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Run a forward pass",
		Long: `Run a forward pass of the configured variant.

Documents come from --input, a SafeTensors file holding "h" [batch, d, seq]
(and "kv" for context_diff), or are drawn from a normal distribution when
--input is omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSession(flags.configPath, opts.logger)
			if err != nil {
				return err
			}
			if s.device == tensor.WebGPU {
				gpu, err := openWebGPU()
				if err != nil {
					return err
				}
				defer gpu.Release()
				return runForward(cmd, s, gpu, flags)
			}
			return runForward(cmd, s, cpu.New(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "run configuration (YAML)")
	cmd.Flags().StringVar(&flags.paramsPath, "params", "", "parameters to load (SafeTensors)")
	cmd.Flags().StringVar(&flags.inputPath, "input", "", "documents to attend over (SafeTensors)")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "write a MessagePack report to this path")
	cmd.Flags().StringVar(&flags.storeDir, "store", "", "archive the report in this run store directory")
	cmd.Flags().IntVar(&flags.batch, "batch", 1, "random documents per batch")
	cmd.Flags().IntVar(&flags.seq, "seq", 16, "random document length")
	cmd.Flags().Int64Var(&flags.inputSeed, "input-seed", 1, "seed for random documents")
	cmd.Flags().IntVar(&flags.top, "top", 3, "tokens to print per label")
	return cmd
}

func runForward[B tensor.Backend](cmd *cobra.Command, s *session, backend B, flags *forwardFlags) error {
	att, err := build(s, backend, flags.paramsPath)
	if err != nil {
		return err
	}

	h, kv, err := forwardInputs(s, backend, flags)
	if err != nil {
		return err
	}
	out, err := att.ForwardPair(h, kv)
	if err != nil {
		return err
	}

	r := report.New(att, out)
	s.logger.Info("forward pass", "run_id", r.RunID, "variant", r.Variant,
		"context", out.Context.Shape(), "weights", out.Weights.Shape())

	if flags.reportPath != "" {
		if err := r.WriteFile(flags.reportPath); err != nil {
			return err
		}
	}
	if flags.storeDir != "" {
		if err := archive(cmd.Context(), flags.storeDir, r, s.logger); err != nil {
			return err
		}
	}
	return printTopTokens(cmd, r, flags.top)
}

// forwardInputs reads or draws the documents of one forward pass.
func forwardInputs[B tensor.Backend](s *session, backend B, flags *forwardFlags) (h, kv *tensor.Tensor[B], err error) {
	if flags.inputPath == "" {
		if flags.batch <= 0 || flags.seq <= 0 {
			return nil, nil, fmt.Errorf("--batch and --seq must be positive")
		}
		rng := rand.New(rand.NewSource(flags.inputSeed)) //nolint:gosec // synthetic inputs
		h = tensor.Randn(tensor.Shape{flags.batch, s.cfg.LatentDocDim, flags.seq}, rng, backend)
		return h, nil, nil
	}

	f, err := serialization.ReadFile(flags.inputPath, backend.Device())
	if err != nil {
		return nil, nil, err
	}
	raw, ok := f.Tensors[inputKey]
	if !ok {
		return nil, nil, fmt.Errorf("%s: missing tensor %q: %w", flags.inputPath, inputKey, serialization.ErrTensorNotFound)
	}
	h = tensor.New(raw, backend)
	if raw, ok := f.Tensors[pairKey]; ok {
		kv = tensor.New(raw, backend)
	}
	return h, kv, nil
}

func printTopTokens(cmd *cobra.Command, r *report.Report, k int) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run %s: variant %s, heads %d, context %v, weights %v\n",
		r.RunID, r.Variant, r.Heads, r.Context.Shape, r.Weights.Shape)
	fmt.Fprintln(w, "DOC\tLABEL\tTOP TOKENS")

	shape := r.Weights.Shape
	for b := 0; b < shape[0]; b++ {
		for label := 0; label < shape[1]; label++ {
			top, err := r.TopTokens(b, label, k)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d\t%d\t%v\n", b, label, top)
		}
	}
	return w.Flush()
}
