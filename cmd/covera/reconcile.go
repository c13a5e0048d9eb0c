package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/covera/internal/customer"
	"github.com/smallbiznis/covera/internal/document"
	"github.com/smallbiznis/covera/internal/payment"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	"github.com/smallbiznis/covera/internal/promocode"
	"github.com/smallbiznis/covera/internal/redisclient"
	"github.com/smallbiznis/covera/internal/subscription"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay gateway notifications left unprocessed",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payments paymentdomain.Service
			app := fx.New(
				infrastructure(opts),
				redisclient.Module,
				customer.Module,
				promocode.Module,
				subscription.Module,
				document.Module,
				payment.Module,
				fx.Populate(&payments),
				fx.NopLogger,
			)
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = app.Stop(context.Background()) }()

			n, err := payments.ReplayPending(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d notification(s) reconciled\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum notifications to replay")
	return cmd
}
