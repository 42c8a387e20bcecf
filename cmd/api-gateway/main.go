package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Eleven Maintenance API
// @version 1.0.0
// @description Work order lifecycle, billing and QR portal for elevator maintenance.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name access_token

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "api-gateway",
		Short:         "Elevator maintenance work order API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newGenerateMonthlyCommand())
	return root
}
