package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"solana-vault-ledger/internal/amount"
	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/domain"
)

func newStrategyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "strategy",
		Aliases: []string{"strategies"},
		Short:   "Attach, fund and report strategies",
	}
	cmd.AddCommand(
		newStrategyListCmd(a),
		newStrategyAddCmd(a),
		newStrategyRemoveCmd(a),
		newStrategyAmountCmd(a, "debt", "Move a strategy toward a target debt",
			func(a *app) strategyAmountFunc { return a.client.UpdateDebt }),
		newStrategyAmountCmd(a, "max-debt", "Set a strategy's debt ceiling",
			func(a *app) strategyAmountFunc { return a.client.UpdateMaxDebt }),
		newStrategyAmountCmd(a, "deposit", "Deposit straight into a strategy",
			func(a *app) strategyAmountFunc { return a.client.DirectDeposit }),
		newStrategyStatusCmd(a),
		newReportCmd(a),
		newPnLCmd(a),
	)
	return cmd
}

func newStrategyListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <vault>",
		Short: "List a vault's strategies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			strategies, err := a.client.ListStrategies(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(strategies)
			}
			w := table()
			fmt.Fprintln(w, "#\tSTRATEGY\tTYPE\tDEBT\tMAX DEBT\tACTIVE")
			for _, s := range strategies {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n", s.Index, s.Key, s.Config.StrategyType,
					amount.Format(s.CurrentDebt, d), amount.Format(s.MaxDebt, d), s.IsActive)
			}
			return w.Flush()
		},
	}
}

func newStrategyAddCmd(a *app) *cobra.Command {
	var (
		kind        string
		maxDebt     string
		depositCap  string
		lockPeriod  time.Duration
		slippageBps uint16
	)
	cmd := &cobra.Command{
		Use:   "add <vault>",
		Short: "Attach a strategy to a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			req := api.AddStrategyRequest{Config: domain.StrategyConfig{StrategyType: strings.ToUpper(kind)}}
			if req.MaxDebt, err = amount.Parse(maxDebt, d); err != nil {
				return fmt.Errorf("--max-debt: %w", err)
			}
			if depositCap != "" {
				c, err := amount.Parse(depositCap, d)
				if err != nil {
					return fmt.Errorf("--deposit-cap: %w", err)
				}
				req.Config.DepositCap = &c
			}
			if cmd.Flags().Changed("lock-period") {
				ms := lockPeriod.Milliseconds()
				req.Config.LockPeriodMs = &ms
			}
			if cmd.Flags().Changed("slippage-bps") {
				req.Config.SlippageBps = &slippageBps
			}

			s, err := a.client.AddStrategy(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(s)
			}
			fmt.Println(s.Key)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "type", domain.StrategyTypeSimple, "Strategy type: simple, time_locked or amm")
	f.StringVar(&maxDebt, "max-debt", "0", "Debt ceiling")
	f.StringVar(&depositCap, "deposit-cap", "", "Cap on assets the strategy accepts")
	f.DurationVar(&lockPeriod, "lock-period", 0, "Lock period of a time_locked strategy")
	f.Uint16Var(&slippageBps, "slippage-bps", 0, "Exit slippage of an amm strategy")
	return cmd
}

func newStrategyRemoveCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "remove <vault> <strategy>",
		Short: "Detach a strategy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, err := a.client.RemoveStrategy(cmd.Context(), args[0], args[1], force)
			if err != nil {
				return err
			}
			return a.printEvent(e, d)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Write off remaining debt as a loss")
	return cmd
}

type strategyAmountFunc func(ctx context.Context, vault, strategy string, n uint64) (*domain.Event, error)

func newStrategyAmountCmd(a *app, use, short string, fn func(a *app) strategyAmountFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <vault> <strategy> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := amount.Parse(args[2], d)
			if err != nil {
				return err
			}
			e, err := fn(a)(cmd.Context(), args[0], args[1], n)
			if err != nil {
				return err
			}
			return a.printEvent(e, d)
		},
	}
}

func newStrategyStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "status <vault> <strategy> <active|inactive>",
		Short:     "Activate or deactivate a strategy",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"active", "inactive"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch args[2] {
			case "active":
				active = true
			case "inactive":
			default:
				return fmt.Errorf("status must be active or inactive, got %q", args[2])
			}
			e, err := a.client.SetStrategyStatus(cmd.Context(), args[0], args[1], active)
			if err != nil {
				return err
			}
			return a.printEvent(e, 0)
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report <vault> <strategy>",
		Short: "Book a strategy's gain or loss",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, err := a.client.ProcessReport(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.printEvent(e, d)
		},
	}
}

func newPnLCmd(a *app) *cobra.Command {
	var gain, loss string
	cmd := &cobra.Command{
		Use:   "pnl <vault> <strategy>",
		Short: "Move a simulated strategy's holdings (simulation servers only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			g, err := amount.Parse(gain, d)
			if err != nil {
				return fmt.Errorf("--gain: %w", err)
			}
			l, err := amount.Parse(loss, d)
			if err != nil {
				return fmt.Errorf("--loss: %w", err)
			}
			return a.client.SimulatePnL(cmd.Context(), args[0], args[1], g, l)
		},
	}
	cmd.Flags().StringVar(&gain, "gain", "0", "Assets to add")
	cmd.Flags().StringVar(&loss, "loss", "0", "Assets to remove")
	return cmd
}
