package domain

import (
	"sort"
	"time"
)

// DailyFlow totals one vault's flows over one UTC day.
type DailyFlow struct {
	Day       time.Time `json:"day"`
	Deposited uint64    `json:"deposited"`
	Withdrawn uint64    `json:"withdrawn"`
	Gains     uint64    `json:"gains"`
	Losses    uint64    `json:"losses"`
	Fees      uint64    `json:"fees"`
}

// RollupDailyFlows aggregates events into per-day flows ordered by day.
// Deposits count DEPOSIT and DIRECT_DEPOSIT amounts, withdrawals count
// WITHDRAW and REDEEM payouts.
func RollupDailyFlows(events []*Event) []DailyFlow {
	byDay := make(map[time.Time]*DailyFlow)
	for _, e := range events {
		day := time.UnixMilli(e.Timestamp).UTC().Truncate(24 * time.Hour)
		f, ok := byDay[day]
		if !ok {
			f = &DailyFlow{Day: day}
			byDay[day] = f
		}
		switch e.Type {
		case EventDeposit, EventDirectDeposit:
			f.Deposited += e.Amount
		case EventWithdraw, EventRedeem:
			f.Withdrawn += e.Amount
		}
		f.Gains += e.Gain
		f.Losses += e.Loss
		f.Fees += e.Fee
	}

	out := make([]DailyFlow, 0, len(byDay))
	for _, f := range byDay {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
