package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/park285/uci-puzzle-harness/internal/domain"
	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// Webhook posts a JSON summary of each finished run to a URL. Delivery is a
// single attempt; a failed post never affects the run's outcome.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	headers HeaderProvider
	timeout time.Duration
}

type Option func(*Webhook)

func WithHeaderProvider(h HeaderProvider) Option {
	return func(w *Webhook) { w.headers = h }
}

func WithDialer(dial fasthttp.DialFunc) Option {
	return func(w *Webhook) { w.http.Dial = dial }
}

func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:     strings.TrimSpace(url),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type Payload struct {
	RunID      string   `json:"run_id"`
	Engine     string   `json:"engine"`
	Solved     int      `json:"solved"`
	Total      int      `json:"total"`
	Percent    float64  `json:"percent"`
	Seed       int64    `json:"seed"`
	DurationMS int64    `json:"duration_ms"`
	Failed     []string `json:"failed,omitempty"`
}

func PayloadFor(run domain.Run) Payload {
	p := Payload{
		RunID:      run.ID,
		Engine:     run.EnginePath,
		Solved:     run.Solved,
		Total:      run.Total,
		Percent:    math.Round(run.Percent()*100) / 100,
		Seed:       run.Seed,
		DurationMS: run.Duration().Milliseconds(),
	}
	for _, res := range run.Results {
		if !res.Success {
			id := res.Puzzle.ID
			if id == "" {
				id = res.Puzzle.FEN
			}
			p.Failed = append(p.Failed, id)
		}
	}
	return p
}

func (w *Webhook) Record(ctx context.Context, run domain.Run) error {
	if w.url == "" {
		return nil
	}
	payload, err := json.Marshal(PayloadFor(run))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	if w.headers != nil {
		for k, v := range w.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	req.SetBody(payload)

	if err := w.http.DoDeadline(req, resp, w.deadline(ctx)); err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}
	return nil
}

func (w *Webhook) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
