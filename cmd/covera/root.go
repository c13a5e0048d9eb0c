package main

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/observability"
	"github.com/smallbiznis/covera/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Injected with -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type rootOptions struct {
	nodeID  int64
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "covera",
		Short:         "Conversational insurance sales: quoting, subscriptions and mobile money settlement",
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.Int64Var(&opts.nodeID, "node-id", 1, "snowflake node id of this instance")
	pf.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "deadline for one-shot commands")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newQuoteCommand(),
		newReconcileCommand(opts),
	)
	return cmd
}

// infrastructure is shared by every command that talks to the database.
func infrastructure(opts *rootOptions) fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(opts.nodeID)
		}),
		db.Module,
		clock.Module,
	)
}
