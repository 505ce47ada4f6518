package corpus

import (
	"fmt"
	"math/rand"

	"github.com/park285/uci-puzzle-harness/internal/domain"
)

const DefaultSeed int64 = 42

type Selection struct {
	MinPopularity int
	MinRating     int
	Count         int
	Seed          int64
}

// Filter keeps puzzles meeting both inclusive thresholds, in corpus order.
func Filter(puzzles []domain.Puzzle, minPopularity, minRating int) []domain.Puzzle {
	out := make([]domain.Puzzle, 0, len(puzzles))
	for _, p := range puzzles {
		if p.Popularity >= minPopularity && p.Rating >= minRating {
			out = append(out, p)
		}
	}
	return out
}

// Select filters and then draws Count puzzles without replacement. The same
// corpus, thresholds, count and seed always give the same sample in the same
// order.
func Select(puzzles []domain.Puzzle, sel Selection) ([]domain.Puzzle, error) {
	if sel.Count <= 0 {
		return nil, fmt.Errorf("puzzle count must be > 0: %d", sel.Count)
	}
	pool := Filter(puzzles, sel.MinPopularity, sel.MinRating)
	if len(pool) < sel.Count {
		return nil, &Error{Reason: fmt.Sprintf(
			"%d puzzles match popularity>=%d rating>=%d, %d requested",
			len(pool), sel.MinPopularity, sel.MinRating, sel.Count)}
	}

	r := rand.New(rand.NewSource(sel.Seed))
	perm := r.Perm(len(pool))
	out := make([]domain.Puzzle, sel.Count)
	for i := range out {
		out[i] = pool[perm[i]]
	}
	return out, nil
}
