package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"solana-vault-ledger/internal/amount"
	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/domain"
)

func newDepositCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <vault> <amount>",
		Short: "Deposit underlying assets for shares",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := amount.Parse(args[1], d)
			if err != nil {
				return err
			}
			e, err := a.client.Deposit(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			return a.printEvent(e, d)
		},
	}
}

// newWithdrawCmd builds withdraw, or redeem when shares is set.
func newWithdrawCmd(a *app, shares bool) *cobra.Command {
	var maxLossBps uint16
	var strategies []string
	use, short := "withdraw <vault> <assets>", "Withdraw underlying assets"
	if shares {
		use, short = "redeem <vault> <shares>", "Redeem shares for underlying assets"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := amount.Parse(args[1], d)
			if err != nil {
				return err
			}
			req := api.WithdrawRequest{MaxLossBps: maxLossBps, Strategies: strategies}
			var e *domain.Event
			if shares {
				req.Shares = n
				e, err = a.client.Redeem(cmd.Context(), args[0], req)
			} else {
				req.Assets = n
				e, err = a.client.Withdraw(cmd.Context(), args[0], req)
			}
			if err != nil {
				return err
			}
			return a.printEvent(e, d)
		},
	}
	cmd.Flags().Uint16Var(&maxLossBps, "max-loss-bps", 0, "Tolerated loss in basis points")
	cmd.Flags().StringSliceVar(&strategies, "strategy", nil, "Strategies to withdraw from, in order")
	return cmd
}

func newPositionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "position <vault> [owner]",
		Short: "Show a depositor's position",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := a.account
			if len(args) == 2 {
				owner = args[1]
			}
			if owner == "" {
				return fmt.Errorf("owner required: pass it or set --account")
			}
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := a.client.GetPosition(cmd.Context(), args[0], owner)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(p)
			}
			w := table()
			fmt.Fprintf(w, "owner\t%s\n", p.Owner)
			fmt.Fprintf(w, "shares\t%s\n", amount.Format(p.Shares, d))
			fmt.Fprintf(w, "max withdraw\t%s\n", amount.Format(p.MaxWithdraw, d))
			fmt.Fprintf(w, "deposited\t%s\n", amount.Format(p.Deposited, d))
			fmt.Fprintf(w, "whitelisted\t%t\n", p.Whitelisted)
			return w.Flush()
		},
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	var assets, shares string
	cmd := &cobra.Command{
		Use:   "preview <vault>",
		Short: "Price assets and shares at the current rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			na, err := amount.Parse(assets, d)
			if err != nil {
				return fmt.Errorf("--assets: %w", err)
			}
			ns, err := amount.Parse(shares, d)
			if err != nil {
				return fmt.Errorf("--shares: %w", err)
			}
			q, err := a.client.Preview(cmd.Context(), args[0], na, ns)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(q)
			}
			w := table()
			fmt.Fprintf(w, "total assets\t%s\n", amount.Format(q.TotalAssets, d))
			fmt.Fprintf(w, "max deposit\t%s\n", amount.Format(q.MaxDeposit, d))
			fmt.Fprintf(w, "deposit %s mints\t%s shares\n", amount.Format(q.Assets, d), amount.Format(q.SharesForAsset, d))
			fmt.Fprintf(w, "withdraw %s burns\t%s shares\n", amount.Format(q.Assets, d), amount.Format(q.BurnForAssets, d))
			fmt.Fprintf(w, "redeem %s pays\t%s\n", amount.Format(q.Shares, d), amount.Format(q.AssetsForShare, d))
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&assets, "assets", "0", "Assets to price")
	cmd.Flags().StringVar(&shares, "shares", "0", "Shares to price")
	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "events <vault>",
		Short: "Show a vault's event history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start int64
			if since > 0 {
				start = time.Now().Add(-since).UnixMilli()
			}
			events, err := a.client.Events(cmd.Context(), args[0], start, 0)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(events)
			}
			w := table()
			fmt.Fprintln(w, "TIME\tTYPE\tACTOR\tAMOUNT\tSHARES\tIDLE\tDEBT")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339), e.Type, e.Actor,
					e.Amount, e.Shares, e.TotalIdle, e.TotalDebt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this")
	return cmd
}

func newFlowsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flows <vault>",
		Short: "Show a vault's daily flow totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			flows, err := a.client.Flows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(flows)
			}
			w := table()
			fmt.Fprintln(w, "DAY	DEPOSITED	WITHDRAWN	GAINS	LOSSES	FEES")
			for _, f := range flows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", f.Day.Format(time.DateOnly),
					amount.Format(f.Deposited, d), amount.Format(f.Withdrawn, d),
					amount.Format(f.Gains, d), amount.Format(f.Losses, d), amount.Format(f.Fees, d))
			}
			return w.Flush()
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [vault]",
		Short: "Stream committed events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vault string
			if len(args) == 1 {
				vault = args[0]
			}
			return a.client.Watch(cmd.Context(), vault, func(e *domain.Event) {
				if a.asJSON {
					_ = a.printJSON(e)
					return
				}
				fmt.Printf("%s %-24s vault=%s amount=%d shares=%d idle=%d debt=%d\n",
					time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339), e.Type, e.Vault,
					e.Amount, e.Shares, e.TotalIdle, e.TotalDebt)
			})
		},
	}
}

func newFaucetCmd(a *app) *cobra.Command {
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "faucet <owner> <mint> <amount>",
		Short: "Fund an owner with test tokens (simulation servers only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.raw {
				decimals = 0
			}
			n, err := amount.Parse(args[2], decimals)
			if err != nil {
				return err
			}
			acct, err := a.client.Faucet(cmd.Context(), args[0], args[1], n)
			if err != nil {
				return err
			}
			fmt.Println(acct)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", 6, "Mint decimals")
	return cmd
}
