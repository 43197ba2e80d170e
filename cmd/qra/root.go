package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qra",
		Short: "Judgment validation and quantified reproducibility",
		Long: "qra filters inattentive participants out of a pairwise judgment study,\n" +
			"scores the candidate systems, measures inter-rater agreement and compares\n" +
			"the result with published scores.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newPrecisionCmd())
	return root
}
