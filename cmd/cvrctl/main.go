// Command cvrctl is the operator CLI of the CVR ledger. It runs backfills and
// prints project financial positions against the configured database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

// app carries what every subcommand needs. open is replaced in tests.
type app struct {
	out        io.Writer
	configPath string
	logLevel   string
	open       func(configPath, logLevel string) (*ledger, error)
}

func main() {
	// an interrupted backfill stops between sub-batches and reports what it did
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, open: openLedger}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cvrctl",
		Short: "Operate the cost-value reconciliation ledger",
		Long: `cvrctl reconciles contracts and payment applications into ledger facts
and reports project financial positions.

Configuration is read from config.toml (or --config) and CVR_ environment
variables. On PostgreSQL the schema must be migrated first (migrate up).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(backfillCmd(a))
	root.AddCommand(positionCmd(a))
	return root
}
