package harness

import (
	"github.com/park285/uci-puzzle-harness/internal/domain"
)

type State int

const (
	StateStart State = iota
	StateAwaitingEngineMove
	StateMatched
	StateMismatched
	StateExhausted
	StateEngineSilent
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingEngineMove:
		return "awaiting_engine_move"
	case StateMatched:
		return "matched"
	case StateMismatched:
		return "mismatched"
	case StateExhausted:
		return "exhausted"
	case StateEngineSilent:
		return "engine_silent"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateMismatched || s == StateExhausted || s == StateEngineSilent
}

// Solved reports whether s is the only successful terminal state.
func (s State) Solved() bool { return s == StateExhausted }

var (
	ErrEngineSilent = domain.Error{Code: domain.CodeEngineSilent, Message: "engine output ended before bestmove"}
	ErrMoveMismatch = domain.Error{Code: domain.CodeMoveMismatch, Message: "engine move differs from solution"}
)

// cause maps a failed terminal state to its error.
func (s State) cause() error {
	switch s {
	case StateMismatched:
		return ErrMoveMismatch
	case StateEngineSilent:
		return ErrEngineSilent
	}
	return nil
}
