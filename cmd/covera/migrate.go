package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/covera/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			options := []fx.Option{infrastructure(opts), fx.Populate(&conn), fx.NopLogger}
			if !statusOnly {
				options = append(options, migration.Module)
			}
			app := fx.New(options...)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = app.Stop(context.Background()) }()

			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			status, err := migration.CurrentStatus(sqlDB)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d (dirty=%t, pending=%t)\n",
				status.Version, status.Latest, status.Dirty, status.Pending())
			return err
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report the schema version without migrating")
	return cmd
}
