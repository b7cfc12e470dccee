package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/born-ml/labelattn/internal/attention"
)

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the attention variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VARIANT\tHIERARCHICAL\tNEEDS\tGAMMA")
			for _, v := range attention.Variants() {
				fmt.Fprintf(w, "%s\t%t\t%s\t%t\n", v, v.IsHierarchical(), needs(v), v.IsMasked())
			}
			return w.Flush()
		},
	}
}

// needs lists the sources entries a variant reads.
func needs(v attention.Variant) string {
	var out string
	add := func(s string) {
		if out != "" {
			out += ","
		}
		out += s
	}
	if v.NeedsLabelEmbeddings() {
		add("label_embeddings")
	}
	if v.NeedsCategoryEmbeddings() {
		add("category_embeddings")
	}
	if v.IsHierarchical() {
		add("label_to_category")
	}
	if out == "" {
		return "-"
	}
	return out
}
