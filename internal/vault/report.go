package vault

import (
	"context"
	"fmt"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/shares"
)

// ProcessReport reconciles a strategy's recorded debt with the assets it
// reports. Gains grow total debt and pay a performance fee in shares. Losses
// shrink total debt.
func (s *Service) ProcessReport(ctx context.Context, actor, vaultKey, strategyKey string) (*domain.Event, error) {
	return s.mutate(ctx, "process_report", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.ReportingManager); err != nil {
			return err
		}
		v := o.vault
		rec, err := o.reg.Get(strategyKey)
		if err != nil {
			return err
		}
		a, err := o.adapter(rec)
		if err != nil {
			return err
		}
		reported, err := a.TotalAssets(ctx)
		if err != nil {
			return fmt.Errorf("strategy assets: %w", err)
		}

		var gain, loss, fee uint64
		switch {
		case reported > rec.CurrentDebt:
			gain = reported - rec.CurrentDebt
			if v.TotalDebt, err = shares.Add(v.TotalDebt, gain); err != nil {
				return err
			}
			rec.CurrentDebt = reported
			if fee, err = o.performanceFee(ctx, gain); err != nil {
				return err
			}
		case reported < rec.CurrentDebt:
			loss = rec.CurrentDebt - reported
			if v.TotalDebt, err = shares.Sub(v.TotalDebt, loss); err != nil {
				return err
			}
			rec.CurrentDebt = reported
		}
		rec.LastUpdate = o.now

		o.event.Type = domain.EventStrategyReported
		o.event.Strategy = rec.Key
		o.event.Amount = reported
		o.event.Gain = gain
		o.event.Loss = loss
		o.event.Fee = fee
		o.onCommit = append(o.onCommit, func() {
			observability.RecordGain(v.Key, gain)
			observability.RecordLoss(v.Key, "report", loss)
			observability.RecordFee(v.Key, "performance", fee)
		})
		return nil
	})
}

// performanceFee assesses the fee on gain and mints it as shares priced on
// the post-gain state.
func (o *op) performanceFee(ctx context.Context, gain uint64) (uint64, error) {
	acc, err := o.accountant()
	if err != nil || acc == nil {
		return 0, err
	}
	fee, err := acc.AssessPerformanceFee(ctx, gain)
	if err != nil {
		return 0, fmt.Errorf("performance fee: %w", err)
	}
	if fee == 0 {
		return 0, nil
	}
	supply, err := shares.SupplyOf(o.vault)
	if err != nil {
		return 0, err
	}
	feeShares, err := shares.ToShares(supply, fee)
	if err != nil {
		return 0, err
	}
	if err := o.mintShares(ctx, acc.FeeRecipient(), feeShares); err != nil {
		return 0, err
	}
	return fee, nil
}
