package harness

import (
	"context"
	"fmt"

	"github.com/park285/uci-puzzle-harness/internal/chess/uci"
	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/park285/uci-puzzle-harness/internal/obslog"
	"go.uber.org/zap"
)

// Searcher asks the engine for its best move in a position.
type Searcher interface {
	Search(ctx context.Context, req uci.SearchRequest) (uci.Reply, error)
}

// Session plays one puzzle against the engine. The first puzzle move is
// applied as setup; afterwards engine and opponent moves alternate, with the
// opponent replies taken from the solution and never asked of the engine.
type Session struct {
	puzzle domain.Puzzle
	engine Searcher
	logger *zap.Logger

	state       State
	pos         *Position
	engineMoves []string
	requests    int
	lastSent    []string
}

func NewSession(engine Searcher, p domain.Puzzle, logger *zap.Logger) *Session {
	if logger == nil {
		logger = obslog.L()
	}
	return &Session{
		puzzle: p,
		engine: engine,
		logger: logger,
		state:  StateStart,
		pos:    NewPosition(p.FEN),
	}
}

func (s *Session) State() State { return s.state }

// Play drives the session to a terminal state. Mismatches and a silent engine
// end in a failed result with a nil error; only search errors are returned.
func (s *Session) Play(ctx context.Context) (domain.SessionResult, error) {
	if s.state != StateStart {
		return s.result(), fmt.Errorf("session already played (state=%s)", s.state)
	}

	if setup := s.puzzle.SetupMove(); setup != "" {
		s.pos.Apply(setup)
	}
	remaining := s.puzzle.Solution()

	for i := 0; !s.state.Terminal(); {
		if i >= len(remaining) {
			s.transition(StateExhausted)
			break
		}

		s.transition(StateAwaitingEngineMove)
		history := s.pos.Moves()
		reply, err := s.engine.Search(ctx, uci.SearchRequest{FEN: s.pos.Base(), Moves: history})
		s.requests++
		s.lastSent = history
		if err != nil {
			return s.result(), fmt.Errorf("puzzle %s search %d: %w", s.label(), s.requests, err)
		}
		if reply.None() {
			s.transition(StateEngineSilent)
			break
		}

		s.engineMoves = append(s.engineMoves, reply.Move)
		if reply.Move != remaining[i] {
			s.logger.Debug("puzzle_move_mismatch",
				zap.String("puzzle", s.label()),
				zap.String("expected", remaining[i]),
				zap.String("got", reply.Move),
				zap.String("ponder", reply.Ponder),
			)
			s.transition(StateMismatched)
			break
		}

		s.transition(StateMatched)
		s.pos.Apply(reply.Move)
		i++
		if i < len(remaining) {
			s.pos.Apply(remaining[i])
			i++
		}
	}

	return s.result(), nil
}

func (s *Session) transition(next State) {
	s.logger.Debug("puzzle_state",
		zap.String("puzzle", s.label()),
		zap.String("from", s.state.String()),
		zap.String("to", next.String()),
		zap.Int("ply", s.pos.Len()),
	)
	s.state = next
}

func (s *Session) result() domain.SessionResult {
	return domain.SessionResult{
		Puzzle:      s.puzzle,
		EngineMoves: append([]string(nil), s.engineMoves...),
		Success:     s.state.Solved(),
		State:       s.state.String(),
		Requests:    s.requests,
		History:     append([]string(nil), s.lastSent...),
		Err:         s.state.cause(),
	}
}

func (s *Session) label() string {
	if s.puzzle.ID != "" {
		return s.puzzle.ID
	}
	return s.puzzle.FEN
}
