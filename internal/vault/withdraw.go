package vault

import (
	"context"
	"fmt"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/shares"
	"solana-vault-ledger/internal/strategy"
)

// WithdrawParams describe a withdrawal.
type WithdrawParams struct {
	Vault string
	User  string
	// Assets is the underlying amount requested by Withdraw. Shares is the
	// share amount redeemed by Redeem.
	Assets uint64
	Shares uint64
	// MaxLossBps is the tolerated loss in basis points of the request.
	MaxLossBps uint16
	// Strategies are drained in this order when idle is short.
	Strategies []string
}

// Withdraw pays out Assets to the user, burning the shares they are worth
// rounded up.
func (s *Service) Withdraw(ctx context.Context, p WithdrawParams) (*domain.Event, error) {
	return s.mutate(ctx, "withdraw", p.User, p.Vault, func(o *op) error {
		if p.Assets == 0 {
			return domain.ErrZeroValue
		}
		supply, err := shares.SupplyOf(o.vault)
		if err != nil {
			return err
		}
		limit, err := o.maxWithdraw(ctx, p.User)
		if err != nil {
			return err
		}
		if p.Assets > limit {
			return fmt.Errorf("%w: %d > %d", domain.ErrExceedWithdrawLimit, p.Assets, limit)
		}
		burn, err := shares.ToSharesUp(supply, p.Assets)
		if err != nil {
			return err
		}
		o.event.Type = domain.EventWithdraw
		return o.redeem(ctx, p, p.Assets, burn)
	})
}

// Redeem burns Shares and pays out the underlying they are worth rounded
// down.
func (s *Service) Redeem(ctx context.Context, p WithdrawParams) (*domain.Event, error) {
	return s.mutate(ctx, "redeem", p.User, p.Vault, func(o *op) error {
		if p.Shares == 0 {
			return domain.ErrZeroValue
		}
		supply, err := shares.SupplyOf(o.vault)
		if err != nil {
			return err
		}
		assets, err := shares.ToUnderlying(supply, p.Shares)
		if err != nil {
			return err
		}
		o.event.Type = domain.EventRedeem
		return o.redeem(ctx, p, assets, p.Shares)
	})
}

// redeem drains idle and strategies for assets, pays the user and burns the
// shares computed up front. Losses found along the way reduce the payout,
// not the burn.
func (o *op) redeem(ctx context.Context, p WithdrawParams, assets, burn uint64) error {
	v := o.vault

	if p.MaxLossBps > domain.MaxBps {
		return fmt.Errorf("%w: %d", domain.ErrInvalidMaxLoss, p.MaxLossBps)
	}
	if assets == 0 || burn == 0 {
		return domain.ErrZeroValue
	}
	held, err := o.shareBalance(ctx, p.User)
	if err != nil {
		return err
	}
	if burn > held {
		return fmt.Errorf("%w: %d > %d", domain.ErrInsufficientShares, burn, held)
	}

	paid, err := o.drain(ctx, assets, p.Strategies, p.MaxLossBps)
	if err != nil {
		return err
	}

	userAcct, err := o.s.TokenAccount(p.User, v.UnderlyingMint)
	if err != nil {
		return err
	}
	if err := o.s.bank.Transfer(ctx, v.TokenAccount, userAcct, paid); err != nil {
		return fmt.Errorf("transfer out: %w", err)
	}
	if v.TotalIdle, err = shares.Sub(v.TotalIdle, paid); err != nil {
		return err
	}
	if err := o.burnShares(ctx, p.User, burn); err != nil {
		return err
	}

	pos, err := o.position(ctx, p.User)
	if err != nil {
		return err
	}
	if paid >= pos.Deposited {
		pos.Deposited = 0
	} else {
		pos.Deposited -= paid
	}

	loss := assets - paid
	o.event.Amount = paid
	o.event.Shares = burn
	o.event.Loss = loss
	o.onCommit = append(o.onCommit, func() {
		observability.RecordWithdrawal(v.Key, paid)
		observability.RecordLoss(v.Key, "withdraw", loss)
	})
	return nil
}

// drain makes requested assets available in idle, pulling from the given
// strategies in order. It returns the amount to pay out, which is requested
// minus the losses realized on the way.
func (o *op) drain(ctx context.Context, requested uint64, keys []string, maxLossBps uint16) (uint64, error) {
	v := o.vault
	original := requested

	if requested > v.TotalIdle {
		if err := o.checkCandidates(keys); err != nil {
			return 0, err
		}
		needed := requested - v.TotalIdle

		for _, key := range keys {
			rec, err := o.reg.Get(key)
			if err != nil {
				return 0, err
			}
			if !rec.IsActive || rec.CurrentDebt == 0 {
				continue
			}
			a, err := o.adapter(rec)
			if err != nil {
				return 0, err
			}
			if a.TokenAccount() != rec.TokenAccount {
				return 0, fmt.Errorf("%w: %s", domain.ErrInvalidAccountPairs, key)
			}

			currentDebt := rec.CurrentDebt
			toWithdraw := min(needed, currentDebt)
			limit, err := a.AvailableWithdraw(ctx)
			if err != nil {
				return 0, fmt.Errorf("available withdraw: %w", err)
			}

			lossShare, err := unrealisedLossShare(ctx, a, currentDebt, toWithdraw)
			if err != nil {
				return 0, err
			}
			if lossShare > 0 {
				if limit < toWithdraw-lossShare {
					// Only part of the request can leave; take the matching
					// part of the loss.
					if lossShare, err = shares.MulDiv(lossShare, limit, toWithdraw-lossShare); err != nil {
						return 0, err
					}
					toWithdraw = limit
				} else {
					toWithdraw -= lossShare
				}
				if requested, err = shares.Sub(requested, lossShare); err != nil {
					return 0, err
				}
				needed = subFloor(needed, lossShare)
				if v.TotalDebt, err = shares.Sub(v.TotalDebt, lossShare); err != nil {
					return 0, err
				}
				if limit == 0 {
					if rec.CurrentDebt, err = shares.Sub(currentDebt, lossShare); err != nil {
						return 0, err
					}
					rec.LastUpdate = o.now
				}
			}

			toWithdraw = min(toWithdraw, limit)
			if toWithdraw == 0 {
				continue
			}

			pre, err := o.vaultBalance(ctx)
			if err != nil {
				return 0, err
			}
			if _, err := a.Withdraw(ctx, toWithdraw); err != nil {
				return 0, fmt.Errorf("strategy withdraw: %w", err)
			}
			post, err := o.vaultBalance(ctx)
			if err != nil {
				return 0, err
			}
			if post < pre {
				return 0, fmt.Errorf("%w: vault balance fell during withdraw", domain.ErrMathOverflow)
			}
			withdrawn := post - pre

			var loss uint64
			switch {
			case withdrawn > toWithdraw:
				// Over-delivery pays down at most the debt not already
				// written off as unrealised loss.
				toWithdraw = min(withdrawn, currentDebt-lossShare)
			case withdrawn < toWithdraw:
				loss = toWithdraw - withdrawn
			}

			if v.TotalIdle, err = shares.Add(v.TotalIdle, withdrawn); err != nil {
				return 0, err
			}
			if requested, err = shares.Sub(requested, loss); err != nil {
				return 0, err
			}
			if v.TotalDebt, err = shares.Sub(v.TotalDebt, toWithdraw); err != nil {
				return 0, err
			}
			if rec.CurrentDebt, err = shares.Sub(currentDebt, toWithdraw+lossShare); err != nil {
				return 0, err
			}
			rec.LastUpdate = o.now

			if requested <= v.TotalIdle {
				break
			}
			needed = subFloor(needed, toWithdraw)
		}
	}

	if v.TotalIdle < requested {
		return 0, fmt.Errorf("%w: idle %d < %d", domain.ErrInsufficientFunds, v.TotalIdle, requested)
	}

	loss := original - requested
	if maxLoss := shares.Bps(original, maxLossBps); loss > maxLoss {
		return 0, fmt.Errorf("%w: %d > %d", domain.ErrTooMuchLoss, loss, maxLoss)
	}
	return requested, nil
}

// unrealisedLossShare is the part of toWithdraw the strategy can no longer
// back because its assets fell below its debt.
func unrealisedLossShare(ctx context.Context, a strategy.Adapter, currentDebt, toWithdraw uint64) (uint64, error) {
	total, err := a.TotalAssets(ctx)
	if err != nil {
		return 0, fmt.Errorf("strategy assets: %w", err)
	}
	if total >= currentDebt {
		return 0, nil
	}
	backed, err := shares.MulDiv(toWithdraw, total, currentDebt)
	if err != nil {
		return 0, err
	}
	return toWithdraw - backed, nil
}

// checkCandidates rejects unknown and repeated strategies.
func (o *op) checkCandidates(keys []string) error {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s listed twice", domain.ErrInvalidAccountPairs, key)
		}
		seen[key] = struct{}{}
		if _, err := o.reg.Get(key); err != nil {
			return fmt.Errorf("%w: %s", err, key)
		}
	}
	return nil
}

// shareBalance reads the shares held by owner.
func (o *op) shareBalance(ctx context.Context, owner string) (uint64, error) {
	acct, err := o.s.TokenAccount(owner, o.vault.SharesMint)
	if err != nil {
		return 0, err
	}
	return o.s.bank.Balance(ctx, acct)
}

// maxWithdraw is the underlying value of owner's shares.
func (o *op) maxWithdraw(ctx context.Context, owner string) (uint64, error) {
	held, err := o.shareBalance(ctx, owner)
	if err != nil {
		return 0, err
	}
	supply, err := shares.SupplyOf(o.vault)
	if err != nil {
		return 0, err
	}
	return shares.ToUnderlying(supply, held)
}

func subFloor(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
