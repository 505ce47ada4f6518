package uci

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/park285/uci-puzzle-harness/internal/domain"
)

// ErrEngineUnresponsive is returned when a search outlives the configured
// timeout. The stream is no longer in a known state after it.
var ErrEngineUnresponsive = domain.Error{
	Code:    domain.CodeEngineUnresponsive,
	Message: "engine unresponsive",
}

type SearchRequest struct {
	FEN   string
	Moves []string
}

// Client issues one search at a time over a Transport.
type Client struct {
	t       *Transport
	timeout time.Duration
	search  sync.Mutex
}

// NewClient wraps t. A zero timeout blocks on the engine indefinitely.
func NewClient(t *Transport, timeout time.Duration) *Client {
	return &Client{t: t, timeout: timeout}
}

func (c *Client) Transport() *Transport { return c.t }

// Search restates the position, starts a search and waits for the best move.
// A dead engine shows up as a ReplyNone, not as an error.
func (c *Client) Search(ctx context.Context, req SearchRequest) (Reply, error) {
	c.search.Lock()
	defer c.search.Unlock()

	if err := c.t.Send(PositionCommand(req.FEN, req.Moves)); err != nil {
		if isStreamEnd(err) {
			return Reply{Kind: ReplyNone}, nil
		}
		return Reply{}, fmt.Errorf("send position: %w", err)
	}
	if err := c.t.Send(GoCommand()); err != nil {
		if isStreamEnd(err) {
			return Reply{Kind: ReplyNone}, nil
		}
		return Reply{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := ReadBestMove(searchCtx, c.t)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Reply{}, fmt.Errorf("%w: no bestmove within %s", ErrEngineUnresponsive, c.timeout)
		}
		return Reply{}, fmt.Errorf("read bestmove: %w", err)
	}
	return reply, nil
}

// Quit sends the terminate command. Nothing may be sent afterwards.
func (c *Client) Quit() error {
	c.search.Lock()
	defer c.search.Unlock()
	if err := c.t.seal(QuitCommand()); err != nil {
		if errors.Is(err, ErrTransportClosed) || isStreamEnd(err) {
			return nil
		}
		return fmt.Errorf("send quit: %w", err)
	}
	return nil
}
