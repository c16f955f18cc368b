package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parlorhq/session-service/internal/app"
	"github.com/parlorhq/session-service/internal/tools/common"
	"github.com/parlorhq/session-service/internal/tools/storecheck"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "session-service",
		Short: "Authentication session service",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(storecheck.NewRootCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(envFile); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Initialize(ctx)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "path to an env file loaded before config")
	return cmd
}
