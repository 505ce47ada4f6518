package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/uci-puzzle-harness/internal/chess/uci"
	"github.com/park285/uci-puzzle-harness/internal/corpus"
	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oracleEngine knows the solutions and answers by ply, except for FENs listed
// in wrong, where it always plays "a1a1".
type oracleEngine struct {
	solutions map[string][]string
	wrong     map[string]bool
	calls     int
	closed    bool
}

func newOracle(puzzles []domain.Puzzle) *oracleEngine {
	o := &oracleEngine{solutions: map[string][]string{}, wrong: map[string]bool{}}
	for _, p := range puzzles {
		o.solutions[p.FEN] = p.Moves
	}
	return o
}

func (o *oracleEngine) Search(_ context.Context, req uci.SearchRequest) (uci.Reply, error) {
	o.calls++
	if o.wrong[req.FEN] {
		return best("a1a1"), nil
	}
	moves := o.solutions[req.FEN]
	if len(req.Moves) >= len(moves) {
		return uci.Reply{Kind: uci.ReplyNone}, nil
	}
	return best(moves[len(req.Moves)]), nil
}

func (o *oracleEngine) Close() error {
	o.closed = true
	return nil
}

func fixturePuzzles(n int) []domain.Puzzle {
	out := make([]domain.Puzzle, n)
	for i := range out {
		out[i] = domain.Puzzle{
			ID:         fmt.Sprintf("P%02d", i),
			FEN:        fmt.Sprintf("fen-%02d w - - 0 1", i),
			Moves:      []string{"a2a3", "b2b3", "c2c3", "d2d3"}[:2+i%3],
			Popularity: 50 + i,
			Rating:     1900 + 20*i,
		}
	}
	return out
}

func TestRunnerAggregates(t *testing.T) {
	puzzles := fixturePuzzles(6)
	eng := newOracle(puzzles)
	eng.wrong[puzzles[1].FEN] = true
	eng.wrong[puzzles[4].FEN] = true

	var seen []int
	r := NewRunner(eng, nil)
	r.OnResult = func(i, total int, _ domain.SessionResult) {
		assert.Equal(t, 6, total)
		seen = append(seen, i)
	}
	run, err := r.Run(context.Background(), domain.Run{}, puzzles)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 6, run.Total)
	assert.Equal(t, 4, run.Solved)
	assert.InDelta(t, 66.666, run.Percent(), 0.01)
	assert.Equal(t, "66.67", fmt.Sprintf("%.2f", run.Percent()))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, seen)
	require.Len(t, run.Results, 6)
	assert.False(t, run.Results[1].Success)
	assert.Equal(t, "a1a1", run.Results[1].EngineMovesString())
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestRunnerStopsOnSearchError(t *testing.T) {
	boom := errors.New("engine died badly")
	eng := &scriptedEngine{
		replies: []uci.Reply{best("b2b3")},
		errAt:   map[int]error{1: boom},
	}
	puzzles := []domain.Puzzle{puzzleOf("x", "a2a3 b2b3"), puzzleOf("y", "a2a3 b2b3"), puzzleOf("z", "a2a3 b2b3")}

	run, err := NewRunner(eng, nil).Run(context.Background(), domain.Run{ID: "fixed"}, puzzles)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "fixed", run.ID)
	assert.Equal(t, 1, run.Total)
	assert.Equal(t, 1, run.Solved)
}

func TestRunnerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := NewRunner(&scriptedEngine{}, nil).Run(ctx, domain.Run{}, fixturePuzzles(3))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, run.Total)
}

func writeCorpus(t *testing.T, puzzles []domain.Puzzle) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("PuzzleId,FEN,Moves,Rating,Popularity\n")
	for _, p := range puzzles {
		fmt.Fprintf(&b, "%s,%s,%s,%d,%d\n", p.ID, p.FEN, p.MovesString(), p.Rating, p.Popularity)
	}
	path := filepath.Join(t.TempDir(), "puzzles.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunBatchIdempotent(t *testing.T) {
	puzzles := fixturePuzzles(30)
	path := writeCorpus(t, puzzles)
	cfg := BatchConfig{CorpusPath: path, Count: 8, Seed: corpus.DefaultSeed, MinPopularity: 55, MinRating: 2000}

	runOnce := func() (domain.Run, *oracleEngine) {
		eng := newOracle(puzzles)
		for i := 0; i < len(puzzles); i += 3 {
			eng.wrong[puzzles[i].FEN] = true
		}
		run, err := RunBatch(context.Background(), cfg, func(context.Context) (Engine, error) { return eng, nil }, nil)
		require.NoError(t, err)
		return run, eng
	}

	first, eng1 := runOnce()
	second, eng2 := runOnce()

	assert.True(t, eng1.closed)
	assert.True(t, eng2.closed)
	assert.Equal(t, 8, first.Total)
	assert.Equal(t, first.Solved, second.Solved)
	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Puzzle, second.Results[i].Puzzle)
		assert.Equal(t, first.Results[i].EngineMoves, second.Results[i].EngineMoves)
		assert.GreaterOrEqual(t, first.Results[i].Puzzle.Popularity, 55)
		assert.GreaterOrEqual(t, first.Results[i].Puzzle.Rating, 2000)
	}
	assert.Equal(t, 8, first.Requested)
	assert.Equal(t, int64(42), first.Seed)
}

func TestRunBatchCorpusErrorsBeforeLaunch(t *testing.T) {
	launched := false
	launch := func(context.Context) (Engine, error) {
		launched = true
		return &scriptedEngine{}, nil
	}

	path := writeCorpus(t, fixturePuzzles(3))
	_, err := RunBatch(context.Background(), BatchConfig{CorpusPath: path, Count: 4, Seed: 1}, launch, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, corpus.ErrCorpusMalformed))

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("FEN,Moves\nx,e2e4\n"), 0o644))
	_, err = RunBatch(context.Background(), BatchConfig{CorpusPath: bad, Count: 1}, launch, nil)
	assert.True(t, errors.Is(err, corpus.ErrCorpusMalformed))

	assert.False(t, launched)
}

func TestRunBatchReleasesEngineOnFailure(t *testing.T) {
	eng := &scriptedEngine{errAt: map[int]error{0: errors.New("boom")}}
	path := writeCorpus(t, fixturePuzzles(3))

	_, err := RunBatch(context.Background(), BatchConfig{CorpusPath: path, Count: 2, Seed: 1},
		func(context.Context) (Engine, error) { return eng, nil }, nil)
	require.Error(t, err)
	assert.Equal(t, 1, eng.closed)
}

// pipeEngine runs a line-protocol engine in a goroutine that solves puzzles
// by ply, chatters info lines, and hangs up on the FEN "silent".
func pipeEngine(t *testing.T, solutions map[string][]string) (*uci.Client, func() []string) {
	t.Helper()
	toEngineR, toEngineW := io.Pipe()
	fromEngineR, fromEngineW := io.Pipe()

	var received []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer fromEngineW.Close()
		var fen string
		var ply int
		sc := bufio.NewScanner(toEngineR)
		for sc.Scan() {
			line := sc.Text()
			received = append(received, line)
			fields := strings.Fields(line)
			switch {
			case line == "quit":
				return
			case len(fields) > 2 && fields[0] == "position":
				rest := strings.TrimPrefix(line, "position fen ")
				fen, ply = rest, 0
				if i := strings.Index(rest, " moves "); i >= 0 {
					fen = rest[:i]
					ply = len(strings.Fields(rest[i+len(" moves "):]))
				}
			case line == "go":
				if fen == "silent" {
					toEngineR.CloseWithError(io.ErrClosedPipe)
					return
				}
				move := solutions[fen][ply]
				fmt.Fprintf(fromEngineW, "info depth 1 pv %s\nbestmove %s ponder a7a6\n", move, move)
			}
		}
	}()
	t.Cleanup(func() {
		toEngineW.Close()
		fromEngineR.Close()
	})

	client := uci.NewClient(uci.NewTransport(fromEngineR, toEngineW), 0)
	return client, func() []string {
		<-done
		return received
	}
}

func TestRunnerOverLineProtocol(t *testing.T) {
	puzzles := []domain.Puzzle{
		puzzleOf("k7/8/8/8/8/8/8/K7 w - - 0 1", "a1a2 a8b8 a2a3 b8c8 a3a4"),
		puzzleOf("silent", "a1a2 a8b8"),
		puzzleOf("8/k7/8/8/8/8/8/K7 b - - 0 1", "a7a6 a1b1"),
	}
	solutions := map[string][]string{}
	for _, p := range puzzles {
		solutions[p.FEN] = p.Moves
	}
	client, lines := pipeEngine(t, solutions)

	run, err := NewRunner(client, nil).Run(context.Background(), domain.Run{}, puzzles)
	require.NoError(t, err)
	require.NoError(t, client.Quit())

	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 1, run.Solved)
	assert.True(t, run.Results[0].Success)
	assert.Equal(t, "a8b8 b8c8", run.Results[0].EngineMovesString())
	assert.Equal(t, StateEngineSilent.String(), run.Results[1].State)
	assert.Equal(t, StateEngineSilent.String(), run.Results[2].State)

	assert.Equal(t, []string{
		"position fen k7/8/8/8/8/8/8/K7 w - - 0 1 moves a1a2",
		"go",
		"position fen k7/8/8/8/8/8/8/K7 w - - 0 1 moves a1a2 a8b8 a2a3",
		"go",
		"position fen silent moves a1a2",
		"go",
	}, lines())
}
