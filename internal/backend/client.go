package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 10 * time.Second
	sessionHeader   = "X-Scan-Session"
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

type Config struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	// Transport overrides the base round tripper; the tracing wrapper is always applied.
	Transport http.RoundTripper
}

// Client talks JSON over HTTP to the ledger backend. All calls share one circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

type errorPayload struct {
	Error string `json:"error"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "backend"))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a 4xx is an answer, not an outage
			var rej *RejectionError
			if errors.As(err, &rej) {
				return rej.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		breaker: breaker,
		logger:  logger,
	}
}

type call struct {
	op        string
	method    string
	path      []string
	query     url.Values
	sessionID string
	body      any
}

// do executes c and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, cl.path...)
	if err != nil {
		return &TransportError{Op: cl.op, Err: err}
	}
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var payload []byte
	if cl.body != nil {
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", cl.op, err)
		}
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (response, error) {
		return c.roundTrip(ctx, cl, endpoint, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &TransportError{Op: cl.op, Err: err}
	}

	fields := []zap.Field{
		zap.String("op", cl.op),
		zap.String("method", cl.method),
		zap.String("path", "/"+strings.Join(cl.path, "/")),
		zap.Int("status", resp.status),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("backend call failed", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Debug("backend call", fields...)

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &TransportError{Op: cl.op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cl call, endpoint string, payload []byte) (response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return response{}, &TransportError{Op: cl.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	if cl.sessionID != "" {
		req.Header.Set(sessionHeader, cl.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, &TransportError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{status: resp.StatusCode}, &TransportError{Op: cl.op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{status: resp.StatusCode}, &RejectionError{
			Op:      cl.op,
			Status:  resp.StatusCode,
			Message: rejectionMessage(resp.StatusCode, data),
		}
	}
	return response{status: resp.StatusCode, body: data}, nil
}

func rejectionMessage(status int, data []byte) string {
	var p errorPayload
	if err := json.Unmarshal(data, &p); err == nil && strings.TrimSpace(p.Error) != "" {
		return strings.TrimSpace(p.Error)
	}
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	if text := strings.TrimSpace(string(data)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}
