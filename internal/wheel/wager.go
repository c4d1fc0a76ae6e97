package wheel

import (
	"math"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// maxWagerMultiplier caps the commercial buff so a boosted stake can at
// most double.
const maxWagerMultiplier = 2.0

// WagerCalculator computes the forced stake for a matchup from bankrolls
// and buffs. Pure function of its inputs.
type WagerCalculator struct {
	MinWager int64
	Fraction float64 // of the smaller bankroll
}

// Compute returns the stake both actors will risk. The base wager is
// max(minWager, floor(min(bankrolls) * fraction)). If either actor carries
// a wager-boost buff, the multiplier min(2.0, 1 + 0.25*magnitude) of the
// higher-boosted actor applies. The result is finally capped to both
// bankrolls so no stake can exceed what either actor holds.
func (c WagerCalculator) Compute(bankrollA, bankrollB int64, buffsA, buffsB domain.BuffSet) int64 {
	smaller := bankrollA
	if bankrollB < smaller {
		smaller = bankrollB
	}

	wager := int64(math.Floor(float64(smaller) * c.Fraction))
	if wager < c.MinWager {
		wager = c.MinWager
	}

	// The wager boost applies from the higher-boosted side only; the
	// opponent's multiplier is intentionally ignored.
	boost := buffsA.Magnitude(domain.BuffWagerBoost)
	if b := buffsB.Magnitude(domain.BuffWagerBoost); b > boost {
		boost = b
	}
	if boost > 0 {
		mult := 1 + 0.25*float64(boost)
		if mult > maxWagerMultiplier {
			mult = maxWagerMultiplier
		}
		wager = int64(math.Floor(float64(wager) * mult))
	}

	if wager > bankrollA {
		wager = bankrollA
	}
	if wager > bankrollB {
		wager = bankrollB
	}
	return wager
}
