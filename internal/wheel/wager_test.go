package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

func TestWagerCalculator_Compute(t *testing.T) {
	calc := WagerCalculator{MinWager: 10, Fraction: 0.10}

	tests := []struct {
		name      string
		bankrollA int64
		bankrollB int64
		buffsA    domain.BuffSet
		buffsB    domain.BuffSet
		want      int64
	}{
		{
			name:      "fraction of smaller bankroll",
			bankrollA: 1000,
			bankrollB: 5000,
			want:      100,
		},
		{
			name:      "floor below minimum",
			bankrollA: 50,
			bankrollB: 50,
			want:      10,
		},
		{
			name:      "single boost unit",
			bankrollA: 1000,
			bankrollB: 1000,
			buffsA:    domain.BuffSet{{Type: domain.BuffWagerBoost, Magnitude: 1}},
			want:      125, // 100 * 1.25
		},
		{
			name:      "higher boost side wins",
			bankrollA: 1000,
			bankrollB: 1000,
			buffsA:    domain.BuffSet{{Type: domain.BuffWagerBoost, Magnitude: 1}},
			buffsB:    domain.BuffSet{{Type: domain.BuffWagerBoost, Magnitude: 2}},
			want:      150, // 100 * 1.5
		},
		{
			name:      "multiplier capped at two",
			bankrollA: 1000,
			bankrollB: 1000,
			buffsA:    domain.BuffSet{{Type: domain.BuffWagerBoost, Magnitude: 10}},
			want:      200,
		},
		{
			name:      "other buffs do not boost",
			bankrollA: 1000,
			bankrollB: 1000,
			buffsA:    domain.BuffSet{{Type: domain.BuffMorale, Magnitude: 4}},
			want:      100,
		},
		{
			name:      "minimum still fits the poorer bankroll",
			bankrollA: 12,
			bankrollB: 5000,
			want:      10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Compute(tt.bankrollA, tt.bankrollB, tt.buffsA, tt.buffsB)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWagerCalculator_NeverExceedsBankrolls(t *testing.T) {
	calc := WagerCalculator{MinWager: 100, Fraction: 0.5}

	// Minimum wager above what the poorer actor holds: capped to the
	// bankroll, never beyond it.
	got := calc.Compute(40, 10000, nil, nil)
	assert.Equal(t, int64(40), got)

	// Boost pushing past the richer side's holdings is capped too.
	boost := domain.BuffSet{{Type: domain.BuffWagerBoost, Magnitude: 8}}
	got = calc.Compute(100, 120, boost, nil)
	assert.LessOrEqual(t, got, int64(100))
}
