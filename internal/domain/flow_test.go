package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollupDailyFlows(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	at := func(d time.Duration) int64 { return day.Add(d).UnixMilli() }

	flows := RollupDailyFlows([]*Event{
		{Type: EventWithdraw, Timestamp: at(26 * time.Hour), Amount: 40},
		{Type: EventDeposit, Timestamp: at(time.Hour), Amount: 100, Fee: 1},
		{Type: EventDirectDeposit, Timestamp: at(2 * time.Hour), Amount: 50},
		{Type: EventStrategyReported, Timestamp: at(3 * time.Hour), Gain: 7, Loss: 0, Fee: 2},
		{Type: EventRedeem, Timestamp: at(30 * time.Hour), Amount: 10, Loss: 3},
	})

	require.Len(t, flows, 2)
	assert.Equal(t, DailyFlow{Day: day, Deposited: 150, Gains: 7, Fees: 3}, flows[0])
	assert.Equal(t, DailyFlow{Day: day.Add(24 * time.Hour), Withdrawn: 50, Losses: 3}, flows[1])

	assert.Empty(t, RollupDailyFlows(nil))
}
