package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"solana-vault-ledger/internal/amount"
	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/domain"
)

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Create, inspect and administer vaults",
	}
	cmd.AddCommand(
		newVaultListCmd(a),
		newVaultGetCmd(a),
		newVaultInitCmd(a),
		newVaultSetCmd(a),
		newWhitelistCmd(a),
		&cobra.Command{
			Use:   "shutdown <vault>",
			Short: "Shut a vault down",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := a.decimals(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				e, err := a.client.Shutdown(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printEvent(e, d)
			},
		},
		&cobra.Command{
			Use:   "close <vault>",
			Short: "Close a shut down vault with no strategies",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := a.client.CloseVault(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printEvent(e, 0)
			},
		},
	)
	return cmd
}

func newVaultListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vaults, err := a.client.ListVaults(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(vaults)
			}
			w := table()
			fmt.Fprintln(w, "VAULT\tMINT\tIDLE\tDEBT\tSHARES\tSHUTDOWN")
			for _, v := range vaults {
				d := v.UnderlyingDecimals
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", v.Key, v.UnderlyingMint,
					amount.Format(v.TotalIdle, d), amount.Format(v.TotalDebt, d), amount.Format(v.TotalShares, d), v.IsShutdown)
			}
			return w.Flush()
		},
	}
}

func newVaultGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <vault>",
		Short: "Show a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.client.GetVault(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(v)
			}
			d := v.UnderlyingDecimals
			w := table()
			fmt.Fprintf(w, "vault\t%s\n", v.Key)
			fmt.Fprintf(w, "underlying\t%s (%d decimals)\n", v.UnderlyingMint, d)
			fmt.Fprintf(w, "shares mint\t%s\n", v.SharesMint)
			fmt.Fprintf(w, "token account\t%s\n", v.TokenAccount)
			if v.Accountant != "" {
				fmt.Fprintf(w, "accountant\t%s\n", v.Accountant)
			}
			fmt.Fprintf(w, "total idle\t%s\n", amount.Format(v.TotalIdle, d))
			fmt.Fprintf(w, "total debt\t%s\n", amount.Format(v.TotalDebt, d))
			fmt.Fprintf(w, "total shares\t%s\n", amount.Format(v.TotalShares, d))
			fmt.Fprintf(w, "deposit limit\t%s\n", amount.Format(v.DepositLimit, d))
			fmt.Fprintf(w, "min deposit\t%s\n", amount.Format(v.MinUserDeposit, d))
			fmt.Fprintf(w, "min idle\t%s\n", amount.Format(v.MinimumTotalIdle, d))
			fmt.Fprintf(w, "flags\tshutdown=%t kyc=%t whitelist=%t direct=%t\n",
				v.IsShutdown, v.KYCVerifiedOnly, v.WhitelistedOnly, v.DirectDepositEnabled)
			return w.Flush()
		},
	}
}

func newVaultInitCmd(a *app) *cobra.Command {
	var req api.InitVaultRequest
	var depositLimit, minDeposit, minIdle string
	cmd := &cobra.Command{
		Use:   "init <underlying-mint>",
		Short: "Create a vault over an underlying mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UnderlyingMint = args[0]
			d := req.UnderlyingDecimals
			if a.raw {
				d = 0
			}
			var err error
			if req.DepositLimit, err = amount.Parse(depositLimit, d); err != nil {
				return fmt.Errorf("--deposit-limit: %w", err)
			}
			if req.MinUserDeposit, err = amount.Parse(minDeposit, d); err != nil {
				return fmt.Errorf("--min-deposit: %w", err)
			}
			if req.MinimumTotalIdle, err = amount.Parse(minIdle, d); err != nil {
				return fmt.Errorf("--min-idle: %w", err)
			}
			v, err := a.client.InitVault(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(v)
			}
			fmt.Println(v.Key)
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint8Var(&req.UnderlyingDecimals, "decimals", 6, "Underlying mint decimals")
	f.Uint64Var(&req.Index, "index", 0, "Vault index for the mint")
	f.StringVar(&req.Accountant, "accountant", "", "Fee accountant key")
	f.StringVar(&depositLimit, "deposit-limit", "0", "Deposit limit")
	f.StringVar(&minDeposit, "min-deposit", "0", "Minimum user deposit")
	f.StringVar(&minIdle, "min-idle", "0", "Minimum total idle")
	f.BoolVar(&req.KYCVerifiedOnly, "kyc", false, "Only KYC verified depositors")
	f.BoolVar(&req.WhitelistedOnly, "whitelist", false, "Only whitelisted depositors")
	f.BoolVar(&req.DirectDepositEnabled, "direct-deposit", false, "Allow deposits straight into strategies")
	return cmd
}

func newVaultSetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change a vault limit",
	}
	setters := []struct {
		use   string
		short string
		set   func(ctx context.Context, vault string, n uint64) (*domain.Event, error)
	}{
		{"deposit-limit", "Set the deposit limit", func(ctx context.Context, vault string, n uint64) (*domain.Event, error) {
			return a.client.SetDepositLimit(ctx, vault, n)
		}},
		{"min-idle", "Set the minimum total idle", func(ctx context.Context, vault string, n uint64) (*domain.Event, error) {
			return a.client.SetMinTotalIdle(ctx, vault, n)
		}},
		{"min-deposit", "Set the minimum user deposit", func(ctx context.Context, vault string, n uint64) (*domain.Event, error) {
			return a.client.SetMinUserDeposit(ctx, vault, n)
		}},
	}
	for _, s := range setters {
		cmd.AddCommand(&cobra.Command{
			Use:   s.use + " <vault> <amount>",
			Short: s.short,
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
				e, err := s.set(cmd.Context(), args[0], n)
				if err != nil {
					return err
				}
				return a.printEvent(e, d)
			},
		})
	}
	return cmd
}

func newWhitelistCmd(a *app) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "whitelist <vault> <owner>",
		Short: "Whitelist an owner for a vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.decimals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, err := a.client.SetWhitelist(cmd.Context(), args[0], args[1], !remove)
			if err != nil {
				return err
			}
			return a.printEvent(e, d)
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove instead of add")
	return cmd
}
