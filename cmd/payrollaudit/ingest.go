package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"payrollaudit/ingest"
)

func newIngestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Upload payroll workbooks: extract, upsert, detect and archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			files := make([]ingest.File, len(args))
			for i, path := range args {
				files[i] = ingest.FileFromPath(path)
			}

			sum, err := a.audit.RunUpload(ctx, files)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", sum.RunID)
			fmt.Fprintln(out, sum.Message())
			fmt.Fprintf(out, "Cruces detectados: %d. Sin cruce: %d.\n", sum.Findings, sum.NonCrossing)
			for _, alert := range sum.Alerts {
				fmt.Fprintf(out, "  ! %s\n", alert)
			}
			return nil
		},
	}
}
