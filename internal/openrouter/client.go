// Package openrouter queries chat-completion models through the OpenRouter API,
// one model at a time or fanned out in parallel.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapachekurt/llm-council/internal/logger"
	"github.com/mapachekurt/llm-council/internal/metrics"
)

const (
	// APIURL is the OpenRouter chat-completions endpoint.
	APIURL = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultTimeout caps the total time of a single model call.
	DefaultTimeout = 120 * time.Second

	// DefaultReferer and DefaultTitle identify this application to OpenRouter.
	DefaultReferer = "https://github.com/mapachekurt/llm-council"
	DefaultTitle   = "LLM Council"
)

var (
	// ErrNoChoices is returned when the response carries no choices.
	ErrNoChoices = errors.New("no choices in response")

	// ErrEmptyContent is returned when choices[0].message.content is null or empty.
	ErrEmptyContent = errors.New("empty message content in response")
)

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Client issues chat-completion requests. It is safe for concurrent use and
// holds no per-call state.
type Client struct {
	endpoint  string
	referer   string
	title     string
	timeout   time.Duration
	transport *http.Transport
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the chat-completions URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIdentity sets the HTTP-Referer and X-Title headers. Empty values are not sent.
func WithIdentity(referer, title string) Option {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// WithTransport sets the transport template cloned for every fan-out.
func WithTransport(t *http.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the public OpenRouter endpoint.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint: APIURL,
		referer:  DefaultReferer,
		title:    DefaultTitle,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNop(c.logger).Named("openrouter")
	if c.transport == nil {
		c.transport = http.DefaultTransport.(*http.Transport)
	}
	return c
}

// Query sends prompt to a single model and returns its completion.
func (c *Client) Query(ctx context.Context, model, prompt, apiKey string) (*Completion, error) {
	hc := c.session()
	defer hc.CloseIdleConnections()
	return c.query(ctx, hc, model, prompt, apiKey)
}

// Fanout queries every model concurrently with the same prompt and waits for
// all of them. The result keeps the order of models; failed calls are logged
// and left out, so the result may be shorter than models or empty.
func (c *Client) Fanout(ctx context.Context, models []string, prompt, apiKey string) []Completion {
	hc := c.session()
	defer hc.CloseIdleConnections()

	results := make([]*Completion, len(models))
	var g errgroup.Group
	for i, model := range models {
		g.Go(func() error {
			completion, err := c.query(ctx, hc, model, prompt, apiKey)
			if err != nil {
				return nil // one failed model must not cancel the others
			}
			results[i] = completion
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Completion, 0, len(models))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// session returns an http.Client over a fresh connection pool.
func (c *Client) session() *http.Client {
	return &http.Client{Transport: c.transport.Clone()}
}

func (c *Client) query(ctx context.Context, hc *http.Client, model, prompt, apiKey string) (*Completion, error) {
	start := time.Now()
	completion, err := c.do(ctx, hc, model, prompt, apiKey)
	outcome := classify(err)
	c.metrics.ObserveUpstream(model, outcome, time.Since(start))

	log := c.logger.With(zap.String("model", model), zap.Duration("elapsed", time.Since(start)))
	switch outcome {
	case metrics.OutcomeOK:
		log.Debug("model responded", zap.Int("content_bytes", len(completion.Content)))
	case metrics.OutcomeTimeout:
		log.Warn("model query timed out", zap.Duration("timeout", c.timeout))
	default:
		log.Warn("model query failed", zap.String("outcome", outcome), zap.Error(err))
	}
	return completion, err
}

func (c *Client) do(ctx context.Context, hc *http.Client, model, prompt, apiKey string) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(Request{
		Model:    model,
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	content := apiResp.Choices[0].Message.Content
	if content == nil || *content == "" {
		return nil, ErrEmptyContent
	}

	reasoning := apiResp.Reasoning
	if bytes.Equal(bytes.TrimSpace(reasoning), []byte("null")) {
		reasoning = nil
	}

	return &Completion{
		Model:     model,
		Content:   *content,
		Reasoning: reasoning,
	}, nil
}

// classify maps a query error to a metrics outcome.
func classify(err error) string {
	var statusErr *StatusError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	case errors.As(err, &statusErr):
		return metrics.OutcomeHTTPError
	case errors.Is(err, ErrNoChoices), errors.Is(err, ErrEmptyContent):
		return metrics.OutcomeEmptyContent
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return metrics.OutcomeDecodeError
	default:
		return metrics.OutcomeTransportError
	}
}
