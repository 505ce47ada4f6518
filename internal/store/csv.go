package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/park285/uci-puzzle-harness/internal/domain"
)

var resultHeader = []string{"fen", "correct_moves", "engine_moves", "engine_correct"}

// Recorder persists a finished run somewhere.
type Recorder interface {
	Record(ctx context.Context, run domain.Run) error
}

// WriteResults emits one row per session in run order.
func WriteResults(w io.Writer, results []domain.SessionResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Puzzle.FEN,
			r.Puzzle.MovesString(),
			r.EngineMovesString(),
			formatBool(r.Success),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatBool matches the capitalised booleans of the historical output files.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// CSVFile writes the results table to Path, replacing any previous file.
type CSVFile struct {
	Path string
}

func (f CSVFile) Record(_ context.Context, run domain.Run) error {
	if dir := filepath.Dir(f.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := WriteResults(out, run.Results); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("write results: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, f.Path)
}
