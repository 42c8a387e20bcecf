package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

func newGenerateMonthlyCommand() *cobra.Command {
	now := time.Now()
	var month, year int

	cmd := &cobra.Command{
		Use:   "generate-monthly",
		Short: "Create the maintenance orders of a period and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.generation.GenerateMonthly(cmd.Context(), month, year)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month to generate (1-12)")
	cmd.Flags().IntVar(&year, "year", now.Year(), "year to generate")
	return cmd
}
