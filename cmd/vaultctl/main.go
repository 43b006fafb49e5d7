// Package main is a command line client for the vault ledger server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"solana-vault-ledger/internal/amount"
	"solana-vault-ledger/internal/client"
	"solana-vault-ledger/internal/domain"
)

// app carries the global flags shared by every subcommand.
type app struct {
	server  string
	account string
	timeout time.Duration
	asJSON  bool
	raw     bool

	client *client.Client
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operate vaults on a ledger server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.client = client.New(a.server, a.account, a.timeout)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.server, "server", "s", envOr("VAULTCTL_SERVER", "http://localhost:8080"), "Ledger server URL")
	f.StringVarP(&a.account, "account", "a", os.Getenv("VAULTCTL_ACCOUNT"), "Account to act as")
	f.DurationVar(&a.timeout, "timeout", 30*time.Second, "Request timeout")
	f.BoolVar(&a.asJSON, "json", false, "Print raw JSON")
	f.BoolVar(&a.raw, "raw", false, "Amounts are base units instead of display units")

	root.AddCommand(
		newVaultCmd(a),
		newStrategyCmd(a),
		newDepositCmd(a),
		newWithdrawCmd(a, false),
		newWithdrawCmd(a, true),
		newPositionCmd(a),
		newPreviewCmd(a),
		newEventsCmd(a),
		newFlowsCmd(a),
		newWatchCmd(a),
		newFaucetCmd(a),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// decimals returns the underlying decimals of a vault, or zero with --raw.
func (a *app) decimals(ctx context.Context, vault string) (uint8, error) {
	if a.raw {
		return 0, nil
	}
	v, err := a.client.GetVault(ctx, vault)
	if err != nil {
		return 0, err
	}
	return v.UnderlyingDecimals, nil
}

// units converts a display amount argument for vault into base units.
func (a *app) units(ctx context.Context, vault, s string) (uint64, error) {
	d, err := a.decimals(ctx, vault)
	if err != nil {
		return 0, err
	}
	return amount.Parse(s, d)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// printEvent prints the committed event of a mutation.
func (a *app) printEvent(e *domain.Event, decimals uint8) error {
	if a.asJSON {
		return a.printJSON(e)
	}
	w := table()
	fmt.Fprintf(w, "event\t%s\t%s\n", e.Type, e.EventID)
	if e.Strategy != "" {
		fmt.Fprintf(w, "strategy\t%s\n", e.Strategy)
	}
	if e.Amount > 0 {
		fmt.Fprintf(w, "amount\t%s\n", amount.Format(e.Amount, decimals))
	}
	if e.Shares > 0 {
		fmt.Fprintf(w, "shares\t%s\n", amount.Format(e.Shares, decimals))
	}
	if e.Gain > 0 || e.Loss > 0 || e.Fee > 0 {
		fmt.Fprintf(w, "gain/loss/fee\t%s / %s / %s\n",
			amount.Format(e.Gain, decimals), amount.Format(e.Loss, decimals), amount.Format(e.Fee, decimals))
	}
	fmt.Fprintf(w, "idle/debt/shares\t%s / %s / %s\n",
		amount.Format(e.TotalIdle, decimals), amount.Format(e.TotalDebt, decimals), amount.Format(e.TotalShares, decimals))
	return w.Flush()
}
