package domain

import "errors"

// Ledger error kinds. Every one of them aborts the current operation with no
// ledger mutation persisted.
var (
	ErrZeroValue             = errors.New("zero value")
	ErrVaultShutdown         = errors.New("vault is shut down")
	ErrMinDepositNotReached  = errors.New("minimum deposit not reached")
	ErrExceedDepositLimit    = errors.New("exceeds deposit limit")
	ErrSameDebt              = errors.New("new debt equals current debt")
	ErrDebtHigherThanMaxDebt = errors.New("debt higher than max debt")
	ErrCannotDeposit         = errors.New("strategy cannot accept deposits")
	ErrCannotWithdraw        = errors.New("strategy cannot withdraw")
	ErrUnrealisedLosses      = errors.New("strategy has unrealised losses")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrExceedWithdrawLimit   = errors.New("exceeds withdraw limit")
	ErrTooMuchLoss           = errors.New("too much loss")
	ErrStrategyHasDebt       = errors.New("strategy has debt")
	ErrInactiveStrategy      = errors.New("strategy is inactive")
	ErrStrategyNotFound      = errors.New("strategy not found")
	ErrInvalidAccountPairs   = errors.New("invalid strategy account pairs")

	ErrMathOverflow          = errors.New("arithmetic overflow")
	ErrStrategyAlreadyExists = errors.New("strategy already exists")
	ErrMaxStrategiesReached  = errors.New("max strategies reached")
	ErrVaultNotFound         = errors.New("vault not found")
	ErrVaultAlreadyExists    = errors.New("vault already exists")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrKYCRequired           = errors.New("kyc verification required")
	ErrNotWhitelisted        = errors.New("account not whitelisted")
	ErrDirectDepositDisabled = errors.New("direct deposit disabled")
	ErrVaultNotShutdown      = errors.New("vault is not shut down")
	ErrVaultHasDebt          = errors.New("vault has debt")
	ErrVaultHasStrategies    = errors.New("vault has strategies")
	ErrInvalidMaxLoss        = errors.New("max loss must be within 0..10000 bps")
)
