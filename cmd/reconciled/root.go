package main

import (
	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every subcommand. Empty values keep
// whatever the environment resolved.
type RootOptions struct {
	LogLevel string
	Driver   string
	DSN      string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "reconciled",
		Short: "Order payment reconciliation engine",
		Long: `reconciled keeps local orders in step with the payment processor.

It accepts signed payment webhooks, verifies orders against the remote
payment API and gates stock delivery on fresh payment evidence.

Configuration is read from the environment (SELLAUTH_*, DATABASE_URL,
DATABASE_PATH, WEBHOOK_HOST, WEBHOOK_PORT, REDIS_ADDR, LOG_LEVEL).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "db-driver", "", "database driver (sqlite3 or postgres)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "db", "", "database DSN")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}
