package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepflow/pkg/trace"
)

func newTraceCmd(a *app) *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace file operations",
	}
	traceCmd.AddCommand(&cobra.Command{
		Use:   "verify <trace.jsonl>",
		Short: "Verify trace file integrity (hash chain)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := trace.VerifyFile(args[0])
			if err != nil {
				return err
			}
			if !result.Valid {
				fmt.Fprintf(a.out, "✗ Chain broken at event %d\n", result.BrokenAt)
				if result.Error != "" {
					fmt.Fprintf(a.out, "  %s\n", result.Error)
				}
				return fmt.Errorf("chain verification failed")
			}
			fmt.Fprintf(a.out, "✓ Chain integrity: %d events in %d runs, no breaks\n", result.EventCount, result.Runs)
			return nil
		},
	})
	return traceCmd
}
