package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-qra/infrastructure/tables"
	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/precision"
)

func newPrecisionCmd() *cobra.Command {
	var (
		measurand  string
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "precision <value> <value> [value...]",
		Short: "Estimate the precision (CV*) of repeated measurements",
		Long: `Estimate the corrected standard deviation, its confidence interval and
the small-sample coefficient of variation CV* of two or more measurements
of the same quantity. The result is printed as CSV.

Usage:
  qra precision 85.0 86.5
  qra precision --measurand vae --confidence 0.9 85.0 86.5 84.2`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]float64, len(args))
			for i, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("value %d: %w", i+1, err)
				}
				values[i] = v
			}

			res, err := precision.Estimate(measurand, values, confidence)
			if err != nil {
				return err
			}
			return tables.WritePrecision(cmd.OutOrStdout(), []domain.PrecisionResult{res})
		},
	}
	cmd.Flags().StringVar(&measurand, "measurand", "measurement", "Name of the measured quantity")
	cmd.Flags().Float64Var(&confidence, "confidence", precision.DefaultConfidence, "Confidence level of the standard deviation interval")
	return cmd
}
