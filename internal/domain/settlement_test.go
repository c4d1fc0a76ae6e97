package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSettlement_ProportionalPayouts(t *testing.T) {
	m := Market{
		ID:          "m1",
		PoolA:       4000,
		PoolB:       6000,
		RakePercent: 5,
	}
	bets := []Bet{
		{ID: "b1", Wallet: "alice", Side: SideA, Amount: 1000},
		{ID: "b2", Wallet: "bob", Side: SideA, Amount: 3000},
		{ID: "b3", Wallet: "carol", Side: SideB, Amount: 6000},
	}

	s := ComputeSettlement(m, bets, SideA)

	assert.Equal(t, SideA, s.Outcome)
	assert.Equal(t, int64(10000), s.TotalPool)
	assert.Equal(t, int64(500), s.Rake)
	assert.Equal(t, int64(9500), s.PayoutPool)

	require.Len(t, s.Payouts, 3)
	assert.True(t, s.Payouts[0].Won)
	assert.Equal(t, int64(2375), s.Payouts[0].Payout)
	assert.True(t, s.Payouts[1].Won)
	assert.Equal(t, int64(7125), s.Payouts[1].Payout)
	assert.False(t, s.Payouts[2].Won)
	assert.Equal(t, int64(0), s.Payouts[2].Payout)
}

func TestComputeSettlement_FloorResidueNotRedistributed(t *testing.T) {
	m := Market{
		PoolA:       300,
		PoolB:       100,
		RakePercent: 7,
	}
	// total 400, rake floor(400*7/100)=28, payout pool 372.
	bets := []Bet{
		{ID: "b1", Wallet: "w1", Side: SideA, Amount: 100},
		{ID: "b2", Wallet: "w2", Side: SideA, Amount: 100},
		{ID: "b3", Wallet: "w3", Side: SideA, Amount: 100},
		{ID: "b4", Wallet: "w4", Side: SideB, Amount: 100},
	}

	s := ComputeSettlement(m, bets, SideA)

	assert.Equal(t, int64(28), s.Rake)
	assert.Equal(t, int64(372), s.PayoutPool)

	var paid int64
	for _, p := range s.Payouts {
		paid += p.Payout
	}
	// Each winner gets floor(100*372/300)=124, so exactly 372 here; use an
	// uneven pool to force residue.
	assert.Equal(t, int64(372), paid)

	m.PoolA = 301
	bets[0].Amount = 101
	s = ComputeSettlement(m, bets, SideA)
	paid = 0
	for _, p := range s.Payouts {
		paid += p.Payout
	}
	assert.Less(t, paid, s.PayoutPool, "flooring should leave residue unpaid")
}

func TestComputeSettlement_EmptyWinningPool(t *testing.T) {
	m := Market{
		PoolA:       0,
		PoolB:       5000,
		RakePercent: 5,
	}
	bets := []Bet{
		{ID: "b1", Wallet: "w1", Side: SideB, Amount: 5000},
	}

	s := ComputeSettlement(m, bets, SideA)

	require.Len(t, s.Payouts, 1)
	assert.False(t, s.Payouts[0].Won)
	assert.Equal(t, int64(0), s.Payouts[0].Payout)
}

func TestComputeSettlement_ZeroRake(t *testing.T) {
	m := Market{
		PoolA:       1000,
		PoolB:       1000,
		RakePercent: 0,
	}
	bets := []Bet{
		{ID: "b1", Wallet: "w1", Side: SideB, Amount: 1000},
	}

	s := ComputeSettlement(m, bets, SideB)

	assert.Equal(t, int64(0), s.Rake)
	assert.Equal(t, int64(2000), s.PayoutPool)
	require.Len(t, s.Payouts, 1)
	assert.Equal(t, int64(2000), s.Payouts[0].Payout)
}
