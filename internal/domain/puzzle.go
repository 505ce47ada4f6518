package domain

import (
	"strings"
	"time"
)

// Puzzle is one corpus record. Moves[0] is the opponent's setup move.
type Puzzle struct {
	ID         string
	FEN        string
	Moves      []string
	Popularity int
	Rating     int
	Themes     []string
}

// SetupMove returns the forced opening move, or "" for an empty solution.
func (p Puzzle) SetupMove() string {
	if len(p.Moves) == 0 {
		return ""
	}
	return p.Moves[0]
}

// Solution is everything after the setup move.
func (p Puzzle) Solution() []string {
	if len(p.Moves) <= 1 {
		return nil
	}
	return p.Moves[1:]
}

func (p Puzzle) MovesString() string { return strings.Join(p.Moves, " ") }

type SessionResult struct {
	Puzzle      Puzzle
	EngineMoves []string
	Success     bool
	State       string
	Requests    int
	History     []string
	Err         error
}

func (r SessionResult) EngineMovesString() string { return strings.Join(r.EngineMoves, " ") }

type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	EnginePath    string
	Seed          int64
	MinPopularity int
	MinRating     int
	Requested     int
	Solved        int
	Total         int
	Results       []SessionResult
}

// Percent is Solved/Total*100, zero for an empty run.
func (r Run) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Solved) / float64(r.Total) * 100
}

func (r Run) Duration() time.Duration {
	d := r.FinishedAt.Sub(r.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
