package uci

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"testing"
)

// fakeEngine answers UCI lines from a script. respond returns the lines to
// write back for each received line; returning nil with hangup closes stdout.
type fakeEngine struct {
	mu       sync.Mutex
	received []string
	done     chan struct{}
}

type scriptFunc func(line string) (reply []string, hangup bool)

func startFakeEngine(t *testing.T, script scriptFunc) (*Transport, *fakeEngine) {
	t.Helper()
	toEngineR, toEngineW := io.Pipe()
	fromEngineR, fromEngineW := io.Pipe()

	fe := &fakeEngine{done: make(chan struct{})}
	go func() {
		defer close(fe.done)
		defer fromEngineW.Close()
		sc := bufio.NewScanner(toEngineR)
		for sc.Scan() {
			line := sc.Text()
			fe.mu.Lock()
			fe.received = append(fe.received, line)
			fe.mu.Unlock()
			if line == "quit" {
				return
			}
			reply, hangup := script(line)
			if len(reply) > 0 {
				if _, err := io.WriteString(fromEngineW, strings.Join(reply, "\n")+"\n"); err != nil {
					return
				}
			}
			if hangup {
				toEngineR.CloseWithError(io.ErrClosedPipe)
				return
			}
		}
	}()
	t.Cleanup(func() {
		toEngineW.Close()
		fromEngineR.Close()
	})
	return NewTransport(fromEngineR, toEngineW), fe
}

func (fe *fakeEngine) lines() []string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]string(nil), fe.received...)
}

// answerGo replies to every "go" with the next scripted lines.
func answerGo(replies ...[]string) scriptFunc {
	var n int
	return func(line string) ([]string, bool) {
		if line != "go" {
			return nil, false
		}
		if n >= len(replies) {
			return nil, true
		}
		r := replies[n]
		n++
		return r, false
	}
}
