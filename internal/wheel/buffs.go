// Package wheel implements the town wheel: a recurring autonomous PvP
// event cycle that matches two actors, runs a spectator prediction market
// around the fight, drives the external game engine to completion, and
// settles all financial consequences.
package wheel

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// zoneBuffs maps each town zone to the buff type it grants.
var zoneBuffs = map[domain.Zone]domain.BuffType{
	domain.ZoneResidential:   domain.BuffHeal,
	domain.ZoneCommercial:    domain.BuffWagerBoost,
	domain.ZoneCivic:         domain.BuffInsight,
	domain.ZoneIndustrial:    domain.BuffDisruption,
	domain.ZoneEntertainment: domain.BuffMorale,
}

// buffOrder fixes the output ordering so buff sets are deterministic.
var buffOrder = []domain.BuffType{
	domain.BuffHeal,
	domain.BuffWagerBoost,
	domain.BuffInsight,
	domain.BuffDisruption,
	domain.BuffMorale,
}

// BuffResolver derives gameplay modifiers for an actor from the virtual
// property it owns. Pure read + mapping; no side effects.
type BuffResolver struct {
	actors domain.ActorStore
}

// NewBuffResolver creates a BuffResolver over the given actor store.
func NewBuffResolver(actors domain.ActorStore) *BuffResolver {
	return &BuffResolver{actors: actors}
}

// Resolve returns the actor's buff set: one entry per zone the actor owns
// built property in, with magnitude equal to the property count. Zones with
// zero properties contribute nothing.
func (r *BuffResolver) Resolve(ctx context.Context, actorID string) (domain.BuffSet, error) {
	props, err := r.actors.ListProperties(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("buffs: list properties for %s: %w", actorID, err)
	}

	counts := make(map[domain.BuffType]int)
	for _, p := range props {
		if t, ok := zoneBuffs[p.Zone]; ok {
			counts[t]++
		}
	}

	var set domain.BuffSet
	for _, t := range buffOrder {
		if n := counts[t]; n > 0 {
			set = append(set, domain.Buff{Type: t, Magnitude: n})
		}
	}
	return set, nil
}
