package domain

// EventType names the operation that produced a ledger event.
type EventType string

// Ledger event types
const (
	EventVaultInitialized      EventType = "VAULT_INITIALIZED"
	EventDeposit               EventType = "DEPOSIT"
	EventDirectDeposit         EventType = "DIRECT_DEPOSIT"
	EventWithdraw              EventType = "WITHDRAW"
	EventRedeem                EventType = "REDEEM"
	EventStrategyAdded         EventType = "STRATEGY_ADDED"
	EventStrategyRemoved       EventType = "STRATEGY_REMOVED"
	EventStrategyStatusUpdated EventType = "STRATEGY_STATUS_UPDATED"
	EventDebtUpdated           EventType = "DEBT_UPDATED"
	EventStrategyReported      EventType = "STRATEGY_REPORTED"
	EventDepositLimitUpdated   EventType = "DEPOSIT_LIMIT_UPDATED"
	EventMinTotalIdleUpdated   EventType = "MIN_TOTAL_IDLE_UPDATED"
	EventMinUserDepositUpdated EventType = "MIN_USER_DEPOSIT_UPDATED"
	EventMaxDebtUpdated        EventType = "MAX_DEBT_UPDATED"
	EventWhitelistUpdated      EventType = "WHITELIST_UPDATED"
	EventVaultShutdown         EventType = "VAULT_SHUTDOWN"
	EventVaultClosed           EventType = "VAULT_CLOSED"
)

// LedgerDelta summarizes how the vault counters moved during one operation.
// Each counter is split into an increase and a decrease so that no signed
// arithmetic is needed.
type LedgerDelta struct {
	IdleIn       uint64 `json:"idle_in"`
	IdleOut      uint64 `json:"idle_out"`
	DebtIn       uint64 `json:"debt_in"`
	DebtOut      uint64 `json:"debt_out"`
	SharesMinted uint64 `json:"shares_minted"`
	SharesBurned uint64 `json:"shares_burned"`
}

// DeltaBetween computes the counter movement from before to after.
func DeltaBetween(before, after *Vault) LedgerDelta {
	var d LedgerDelta
	d.IdleIn, d.IdleOut = split(before.TotalIdle, after.TotalIdle)
	d.DebtIn, d.DebtOut = split(before.TotalDebt, after.TotalDebt)
	d.SharesMinted, d.SharesBurned = split(before.TotalShares, after.TotalShares)
	return d
}

func split(before, after uint64) (in, out uint64) {
	if after >= before {
		return after - before, 0
	}
	return 0, before - after
}

// Event is an append-only record of one committed ledger operation.
type Event struct {
	EventID   string    `json:"event_id"` // ULID, sortable by creation time
	Type      EventType `json:"type"`
	Vault     string    `json:"vault"`
	Strategy  string    `json:"strategy,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp int64     `json:"timestamp"` // Unix ms

	Amount uint64 `json:"amount"` // assets moved by the caller's request
	Shares uint64 `json:"shares"` // shares minted to or burned from the actor
	Gain   uint64 `json:"gain"`
	Loss   uint64 `json:"loss"`
	Fee    uint64 `json:"fee"`

	Delta LedgerDelta `json:"delta"`

	// Resulting state
	TotalIdle   uint64 `json:"total_idle"`
	TotalDebt   uint64 `json:"total_debt"`
	TotalShares uint64 `json:"total_shares"`
	CurrentDebt uint64 `json:"current_debt"` // strategy debt when Strategy is set
}
