package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarketSideFor(t *testing.T) {
	m := Market{
		OptionA: MarketOption{ActorID: "actor-a", Label: "Ada"},
		OptionB: MarketOption{ActorID: "actor-b", Label: "Bram"},
	}

	side, ok := m.SideFor("actor-a")
	assert.True(t, ok)
	assert.Equal(t, SideA, side)

	side, ok = m.SideFor("actor-b")
	assert.True(t, ok)
	assert.Equal(t, SideB, side)

	_, ok = m.SideFor("stranger")
	assert.False(t, ok)
}

func TestMarketOdds(t *testing.T) {
	m := Market{ID: "m1", PoolA: 2500, PoolB: 7500}

	odds := m.Odds()

	assert.Equal(t, "m1", odds.MarketID)
	assert.InDelta(t, 25.0, odds.PercentA, 1e-9)
	assert.InDelta(t, 75.0, odds.PercentB, 1e-9)
	assert.InDelta(t, 4.0, odds.MultiplierA, 1e-9)
	assert.InDelta(t, 10.0/7.5, odds.MultiplierB, 1e-9)
}

func TestMarketOdds_EmptyPools(t *testing.T) {
	odds := Market{ID: "m1"}.Odds()

	assert.Zero(t, odds.PercentA)
	assert.Zero(t, odds.MultiplierA)
	assert.Zero(t, odds.MultiplierB)
}

func TestMarketOdds_OneSidedPool(t *testing.T) {
	odds := Market{ID: "m1", PoolA: 500}.Odds()

	assert.InDelta(t, 100.0, odds.PercentA, 1e-9)
	assert.InDelta(t, 1.0, odds.MultiplierA, 1e-9)
	assert.Zero(t, odds.MultiplierB)
}

func TestMarketStatusTerminal(t *testing.T) {
	assert.False(t, MarketStatusOpen.Terminal())
	assert.False(t, MarketStatusLocked.Terminal())
	assert.True(t, MarketStatusResolved.Terminal())
	assert.True(t, MarketStatusCancelled.Terminal())
}

func TestSideValid(t *testing.T) {
	assert.True(t, SideA.Valid())
	assert.True(t, SideB.Valid())
	assert.False(t, Side("C").Valid())
	assert.False(t, Side("").Valid())
}
