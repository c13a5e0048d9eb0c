package main

import (
	"github.com/smallbiznis/covera/internal/migration"
	"github.com/smallbiznis/covera/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat, callback and quoting HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			options := []fx.Option{infrastructure(opts)}
			if !skipMigrations {
				options = append(options, migration.Module)
			}
			options = append(options, server.Module)

			app := fx.New(options...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on boot")
	return cmd
}
