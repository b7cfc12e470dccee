package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/born-ml/labelattn/internal/report"
	"github.com/born-ml/labelattn/internal/runstore"
)

func newRunsCmd(opts *options) *cobra.Command {
	var storeDir string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect forward passes archived with forward --store",
	}
	cmd.PersistentFlags().StringVar(&storeDir, "store", "", "run store directory")

	open := func() (*runstore.Store, error) {
		if storeDir == "" {
			return nil, fmt.Errorf("--store is required")
		}
		return runstore.Open(runstore.Options{Dir: storeDir, Logger: opts.logger})
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tTIME\tVARIANT\tHEADS\tBATCH\tLABELS\tSEQ")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n", r.RunID,
					time.Unix(0, r.Timestamp).UTC().Format(time.RFC3339),
					r.Variant, r.Heads, r.Batch, r.Labels, r.Seq)
			}
			return w.Flush()
		},
	}

	var top int
	var out string
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the most attended tokens of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out != "" {
				if err := r.WriteFile(out); err != nil {
					return err
				}
			}
			return printTopTokens(cmd, r, top)
		},
	}
	show.Flags().IntVar(&top, "top", 3, "tokens to print per label")
	show.Flags().StringVarP(&out, "output", "o", "", "also write the report to this MessagePack file")

	del := &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Remove archived runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

// archive stores r in the run store at dir.
func archive(ctx context.Context, dir string, r *report.Report, logger *slog.Logger) error {
	store, err := runstore.Open(runstore.Options{Dir: dir, Logger: logger})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(ctx, r); err != nil {
		return err
	}
	logger.Debug("run archived", "run_id", r.RunID, "store", dir)
	return nil
}
