package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/trace"
)

func newVerifyCmd() *cobra.Command {
	var (
		capacity int
		output   string
	)
	cmd := &cobra.Command{
		Use:   "verify <log-file>",
		Short: "Check a JSON run log against the boarding rules",
		Long: `Verify replays a log written with --log-format json and reports every
ordering rule the run broke: riders boarding without a vehicle present,
overlapping visits, batches larger than the snapshot or capacity.

Exits 1 when violations are found and 2 when the log cannot be read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != config.OutputText && output != config.OutputJSON {
				return fmt.Errorf("invalid output format %q: must be %q or %q", output, config.OutputText, config.OutputJSON)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening log: %w", err)
			}
			defer f.Close()

			report, err := trace.Verify(f, trace.Options{Capacity: capacity})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == config.OutputJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			} else {
				fmt.Fprintf(out, "Lines:      %d\n", report.Lines)
				fmt.Fprintf(out, "Arrivals:   %d\n", report.Arrivals)
				fmt.Fprintf(out, "Boardings:  %d\n", report.Boardings)
				fmt.Fprintf(out, "Visits:     %d (%d empty)\n", report.Visits, report.Empty)
				for _, v := range report.Violations {
					fmt.Fprintf(out, "  ✗ %s\n", v)
				}
				if report.OK() {
					fmt.Fprintln(out, "  ✓ no violations")
				}
			}

			if !report.OK() {
				return &exitError{
					code: ExitThresholdFailed,
					err:  fmt.Errorf("%d violation(s) found", len(report.Violations)),
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&capacity, "capacity", 0, "also flag batches larger than this (0 = unchecked)")
	cmd.Flags().StringVar(&output, "output", config.OutputText, "report format: text, json")
	return cmd
}
