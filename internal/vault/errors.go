package vault

import (
	"errors"

	"solana-vault-ledger/internal/domain"
)

// kinds maps ledger error kinds to stable labels.
var kinds = []struct {
	err  error
	name string
}{
	{domain.ErrZeroValue, "zero_value"},
	{domain.ErrVaultShutdown, "vault_shutdown"},
	{domain.ErrMinDepositNotReached, "min_deposit_not_reached"},
	{domain.ErrExceedDepositLimit, "exceed_deposit_limit"},
	{domain.ErrSameDebt, "same_debt"},
	{domain.ErrDebtHigherThanMaxDebt, "debt_higher_than_max_debt"},
	{domain.ErrCannotDeposit, "cannot_deposit"},
	{domain.ErrCannotWithdraw, "cannot_withdraw"},
	{domain.ErrUnrealisedLosses, "unrealised_losses"},
	{domain.ErrInsufficientFunds, "insufficient_funds"},
	{domain.ErrInsufficientShares, "insufficient_shares"},
	{domain.ErrExceedWithdrawLimit, "exceed_withdraw_limit"},
	{domain.ErrTooMuchLoss, "too_much_loss"},
	{domain.ErrStrategyHasDebt, "strategy_has_debt"},
	{domain.ErrInactiveStrategy, "inactive_strategy"},
	{domain.ErrStrategyNotFound, "strategy_not_found"},
	{domain.ErrInvalidAccountPairs, "invalid_account_pairs"},
	{domain.ErrMathOverflow, "math_overflow"},
	{domain.ErrStrategyAlreadyExists, "strategy_already_exists"},
	{domain.ErrMaxStrategiesReached, "max_strategies_reached"},
	{domain.ErrVaultNotFound, "vault_not_found"},
	{domain.ErrVaultAlreadyExists, "vault_already_exists"},
	{domain.ErrUnauthorized, "unauthorized"},
	{domain.ErrKYCRequired, "kyc_required"},
	{domain.ErrNotWhitelisted, "not_whitelisted"},
	{domain.ErrDirectDepositDisabled, "direct_deposit_disabled"},
	{domain.ErrVaultNotShutdown, "vault_not_shutdown"},
	{domain.ErrVaultHasDebt, "vault_has_debt"},
	{domain.ErrVaultHasStrategies, "vault_has_strategies"},
	{domain.ErrInvalidMaxLoss, "invalid_max_loss"},
}

// ErrorKind returns the label of the ledger error kind err wraps, or
// "internal" for collaborator failures.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
