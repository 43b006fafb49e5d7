// Package main runs the keeper bot: scheduled strategy reports and debt
// rebalancing against a ledger server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"solana-vault-ledger/internal/client"
	"solana-vault-ledger/internal/config"
	"solana-vault-ledger/internal/keeper"
	"solana-vault-ledger/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var once bool

	cmd := &cobra.Command{
		Use:           "keeper",
		Short:         "Report strategies and rebalance debt on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Keeper.Account == "" {
				return fmt.Errorf("keeper.account is required")
			}
			logger, err := logging.Init(logging.Config(cfg.Log))
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			log := logging.Component(logger, "keeper")

			c := client.New(cfg.Keeper.ServerURL, cfg.Keeper.Account, cfg.Keeper.RequestTimeout)
			k := keeper.New(c, cfg.Keeper, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if once {
				return runOnce(ctx, k)
			}
			if err := c.Health(ctx); err != nil {
				log.WithError(err).Warn("ledger server not reachable yet")
			}
			if err := k.Register(ctx); err != nil {
				return err
			}
			k.Start()
			<-ctx.Done()
			k.Stop()
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().BoolVar(&once, "once", false, "Run rebalance and report once and exit")
	return cmd
}

func runOnce(ctx context.Context, k *keeper.Keeper) error {
	res, err := k.Rebalance(ctx)
	fmt.Printf("rebalance: done=%d skipped=%d failed=%d\n", res.Done, res.Skipped, res.Failed)
	if err != nil {
		return err
	}
	res, err = k.ReportAll(ctx)
	fmt.Printf("report: done=%d skipped=%d failed=%d\n", res.Done, res.Skipped, res.Failed)
	return err
}
