package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrTransportClosed is returned by Send after quit has been written.
var ErrTransportClosed = errors.New("uci transport closed")

// Transport is a line-oriented channel to an engine. Every Send is flushed
// before it returns so the engine never waits on a buffered request.
type Transport struct {
	mu     sync.Mutex
	w      *bufio.Writer
	r      *bufio.Reader
	closed bool

	// OnSend and OnReceive observe raw traffic; used for debug logging.
	OnSend    func(line string)
	OnReceive func(line string)
}

func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		w: bufio.NewWriter(w),
		r: bufio.NewReader(r),
	}
}

// Send writes one line plus terminator and flushes it.
func (t *Transport) Send(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	line = strings.TrimRight(line, "\r\n")
	if _, err := t.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %q: %w", line, err)
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush %q: %w", line, err)
	}
	if t.OnSend != nil {
		t.OnSend(line)
	}
	return nil
}

// seal blocks further sends. The line passed is the last one written.
func (t *Transport) seal(line string) error {
	if err := t.Send(line); err != nil {
		return err
	}
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// ReceiveLine blocks until a full line arrives or the stream ends. A final
// unterminated line is still returned; io.EOF follows on the next call.
func (t *Transport) ReceiveLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := t.r.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err == nil && t.OnReceive != nil {
			t.OnReceive(res.line)
		}
		return res.line, res.err
	}
}
