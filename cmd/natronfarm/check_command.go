package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"natronfarm/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check renderers, tool definitions and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			renderers := preflight.CheckRenderers(cfg)
			rows := make([][]string, 0, len(renderers))
			missing := 0
			for _, status := range renderers {
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				if !status.Available && !status.Optional {
					missing++
				}
				rows = append(rows, []string{status.Name, yesNo(status.Available), status.Command, detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Renderer"},
				{Header: "Found"},
				{Header: "Executable"},
				{Header: "Detail"},
			}, rows))

			results := append(preflight.RunAll(cmd.Context(), cfg), preflight.CheckEcosystem(cfg))
			rows = rows[:0]
			for _, result := range results {
				rows = append(rows, []string{result.Name, yesNo(result.Passed), result.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Check"},
				{Header: "OK"},
				{Header: "Detail"},
			}, rows))

			failed := preflight.Failed(results)
			if missing > 0 || len(failed) > 0 {
				return fmt.Errorf("%d renderer(s) missing, %d check(s) failed", missing, len(failed))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
