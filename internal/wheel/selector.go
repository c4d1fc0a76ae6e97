package wheel

import (
	"math/rand"
	"sort"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// AgentSelector picks the pair for the next cycle and draws the game type.
// It prefers pairs with a flagged rivalry; otherwise it shuffles and takes
// the first two.
type AgentSelector struct {
	rng *rand.Rand
}

// NewAgentSelector creates a selector using the given random source. Pass a
// seeded source in tests for determinism.
func NewAgentSelector(rng *rand.Rand) *AgentSelector {
	return &AgentSelector{rng: rng}
}

// Pick chooses two actors from the eligible set. The rivalry scan is
// O(n^2) over pairs, which is fine at the expected scale of tens of
// actors. Returns domain.ErrNotEnoughAgents when fewer than two actors are
// eligible.
func (s *AgentSelector) Pick(eligible []domain.Actor) (domain.Actor, domain.Actor, error) {
	if len(eligible) < 2 {
		return domain.Actor{}, domain.Actor{}, domain.ErrNotEnoughAgents
	}

	byID := make(map[string]bool, len(eligible))
	for _, a := range eligible {
		byID[a.ID] = true
	}

	// Prefer an existing rivalry if both sides are eligible.
	for i := range eligible {
		for _, rival := range eligible[i].Rivals {
			if rival == eligible[i].ID || !byID[rival] {
				continue
			}
			for j := range eligible {
				if eligible[j].ID == rival {
					return eligible[i], eligible[j], nil
				}
			}
		}
	}

	shuffled := make([]domain.Actor, len(eligible))
	copy(shuffled, eligible)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[0], shuffled[1], nil
}

// DrawGameType performs a weighted random draw over the configured game
// distribution. Weights of zero or below never win; an empty map falls
// back to poker.
func (s *AgentSelector) DrawGameType(weights map[string]int) domain.GameType {
	total := 0
	// Iterate in a fixed order so equal seeds draw equal games.
	games := sortedKeys(weights)
	for _, g := range games {
		if weights[g] > 0 {
			total += weights[g]
		}
	}
	if total <= 0 {
		return domain.GamePoker
	}

	roll := s.rng.Intn(total)
	for _, g := range games {
		w := weights[g]
		if w <= 0 {
			continue
		}
		if roll < w {
			return domain.GameType(g)
		}
		roll -= w
	}
	return domain.GamePoker
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
