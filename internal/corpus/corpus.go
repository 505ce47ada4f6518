package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/park285/uci-puzzle-harness/internal/domain"
)

// ErrCorpusMalformed marks every corpus error that must abort a run before
// the engine is started.
var ErrCorpusMalformed = domain.Error{Code: domain.CodeCorpusMalformed, Message: "puzzle corpus malformed"}

// Error locates a corpus problem. Line is 1-based and counts the header.
type Error struct {
	Line   int
	Column string
	Reason string
}

func (e *Error) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("corpus line %d column %s: %s", e.Line, e.Column, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("corpus line %d: %s", e.Line, e.Reason)
	default:
		return "corpus: " + e.Reason
	}
}

func (e *Error) Unwrap() error { return ErrCorpusMalformed }

const (
	colID         = "PuzzleId"
	colFEN        = "FEN"
	colMoves      = "Moves"
	colPopularity = "Popularity"
	colRating     = "Rating"
	colThemes     = "Themes"
)

var requiredColumns = []string{colFEN, colMoves, colPopularity, colRating}

// LoadFile reads a puzzle CSV from disk.
func LoadFile(path string) ([]domain.Puzzle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %q: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a headered CSV. FEN, Moves, Popularity and Rating are required;
// PuzzleId and Themes are picked up when present. Other columns are ignored.
func Load(r io.Reader) ([]domain.Puzzle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &Error{Reason: "empty corpus, no header"}
	}
	if err != nil {
		return nil, &Error{Line: 1, Reason: err.Error()}
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, &Error{Line: 1, Column: col, Reason: "required column missing"}
		}
	}

	var puzzles []domain.Puzzle
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &Error{Line: line, Reason: err.Error()}
		}
		p, err := parseRecord(rec, idx, line)
		if err != nil {
			return nil, err
		}
		puzzles = append(puzzles, p)
	}
	return puzzles, nil
}

func parseRecord(rec []string, idx map[string]int, line int) (domain.Puzzle, error) {
	field := func(col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}
	require := func(col string) (string, error) {
		v, ok := field(col)
		if !ok || v == "" {
			return "", &Error{Line: line, Column: col, Reason: "value missing"}
		}
		return v, nil
	}
	atoi := func(col string) (int, error) {
		v, err := require(col)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, &Error{Line: line, Column: col, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		return n, nil
	}

	fen, err := require(colFEN)
	if err != nil {
		return domain.Puzzle{}, err
	}
	movesRaw, err := require(colMoves)
	if err != nil {
		return domain.Puzzle{}, err
	}
	popularity, err := atoi(colPopularity)
	if err != nil {
		return domain.Puzzle{}, err
	}
	rating, err := atoi(colRating)
	if err != nil {
		return domain.Puzzle{}, err
	}

	p := domain.Puzzle{
		FEN:        fen,
		Moves:      strings.Fields(movesRaw),
		Popularity: popularity,
		Rating:     rating,
	}
	if id, ok := field(colID); ok {
		p.ID = id
	}
	if themes, ok := field(colThemes); ok && themes != "" {
		p.Themes = strings.Fields(themes)
	}
	return p, nil
}
