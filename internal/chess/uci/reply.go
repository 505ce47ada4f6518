package uci

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
)

type ReplyKind int

const (
	// ReplyNone means the stream ended before a best-move line arrived.
	ReplyNone ReplyKind = iota
	ReplyBestMove
	ReplyBestMoveWithPonder
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyBestMove:
		return "bestmove"
	case ReplyBestMoveWithPonder:
		return "bestmove+ponder"
	default:
		return "none"
	}
}

type Reply struct {
	Kind   ReplyKind
	Move   string
	Ponder string
}

func (r Reply) None() bool { return r.Kind == ReplyNone }

const (
	bestMoveTag = "bestmove"
	ponderTag   = "ponder"
)

// ParseBestMove decodes a best-move line. Only `bestmove <m>` and
// `bestmove <m> ponder <p> ...` are accepted; anything else reports false.
func ParseBestMove(line string) (Reply, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != bestMoveTag {
		return Reply{}, false
	}
	switch {
	case len(parts) == 2:
		return Reply{Kind: ReplyBestMove, Move: parts[1]}, true
	case len(parts) >= 4 && parts[2] == ponderTag:
		return Reply{Kind: ReplyBestMoveWithPonder, Move: parts[1], Ponder: parts[3]}, true
	}
	return Reply{}, false
}

// LineReceiver is the read half of a Transport.
type LineReceiver interface {
	ReceiveLine(ctx context.Context) (string, error)
}

// ReadBestMove skips every line that is not a best-move reply and returns the
// first one decoded. A closed stream yields a ReplyNone with a nil error.
func ReadBestMove(ctx context.Context, rx LineReceiver) (Reply, error) {
	for {
		line, err := rx.ReceiveLine(ctx)
		if err != nil {
			if isStreamEnd(err) {
				return Reply{Kind: ReplyNone}, nil
			}
			return Reply{}, err
		}
		if reply, ok := ParseBestMove(line); ok {
			return reply, nil
		}
	}
}

func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE)
}
