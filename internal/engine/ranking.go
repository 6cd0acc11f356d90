package engine

import (
	"sort"

	"github.com/dom/stream-games/internal/domain"
)

// Rank scores guesses by absolute distance to actual and returns the best
// count of them. Ties keep input order, so callers must pass guesses in a
// deterministic order (most recently updated first).
func Rank(guesses []*domain.Guess, actual int64, count int) []domain.RankedGuess {
	ranked := make([]domain.RankedGuess, len(guesses))
	for i, g := range guesses {
		delta := g.ValueCents - actual
		if delta < 0 {
			delta = -delta
		}
		ranked[i] = domain.RankedGuess{
			Name:       g.Name,
			ValueCents: g.ValueCents,
			DeltaCents: delta,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DeltaCents < ranked[j].DeltaCents
	})

	if count < 0 {
		count = 0
	}
	if count < len(ranked) {
		ranked = ranked[:count]
	}
	return ranked
}

// Eliminate splits alive participants (by name key) into survivors, whose
// choice matches winningKey, and the eliminated rest. A participant without
// a choice is eliminated.
func Eliminate(alive []string, choices map[string]string, winningKey string) (survivors, eliminated []string) {
	for _, key := range alive {
		if team, ok := choices[key]; ok && team == winningKey {
			survivors = append(survivors, key)
			continue
		}
		eliminated = append(eliminated, key)
	}
	return survivors, eliminated
}
