package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"puhuri/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, binaries, translator, and engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, result := range results {
				state := "ok"
				if !result.Passed {
					state = "failed"
					failed++
				}
				rows = append(rows, []string{result.Name, state, result.Detail})
			}

			out := cmd.OutOrStdout()
			table := renderTable(
				[]string{"Check", "Result", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(out, table)

			if !preflight.AllPassed(results) {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
