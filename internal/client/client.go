package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 5 * time.Second
)

// TokenSource supplies the bearer credential attached to requests.
type TokenSource interface {
	Token() string
}

type Options struct {
	BaseURL string
	// Timeout bounds one request including reading the body.
	Timeout time.Duration
	// RatePerSecond caps outgoing requests; zero disables the limiter.
	RatePerSecond int
}

// Client talks JSON to the market service.
type Client struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	tracer  trace.Tracer
	logger  *zap.Logger
	limiter *RateLimiter

	mu     sync.RWMutex
	tokens TokenSource
}

func New(opts Options, tracer trace.Tracer, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		client:  &http.Client{},
		baseURL: baseURL,
		timeout: timeout,
		tracer:  tracer,
		logger:  logger,
	}
	if opts.RatePerSecond > 0 {
		c.limiter = NewRateLimiter(opts.RatePerSecond, time.Second/time.Duration(opts.RatePerSecond))
	}
	return c
}

// UseTokens sets where the bearer credential comes from.
func (c *Client) UseTokens(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) BaseURL() string { return c.baseURL }

type Request struct {
	Method string
	Path   string
	// Body is encoded as JSON when non-nil.
	Body   any
	Header http.Header
	// Anonymous skips the Authorization header.
	Anonymous bool
}

// Response is a fully read response. Data is nil when the body was empty
// or not JSON; DecodeErr tells the two apart.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
	Data       json.RawMessage
	DecodeErr  *DecodeError
	RequestID  string
}

// Do sends req and reads the whole body before looking at it. It fails only
// on transport errors or a non-2xx status, never on a body that does not
// parse.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "market-client.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", req.Path),
	)

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", op, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	if !req.Anonymous {
		if token := c.token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		netErr := &NetworkError{Op: op, Err: err}
		span.RecordError(netErr)
		span.SetStatus(codes.Error, "transport failure")
		return nil, netErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		netErr := &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
		span.RecordError(netErr)
		span.SetStatus(codes.Error, "read failure")
		return nil, netErr
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       raw,
		RequestID:  requestID,
	}
	out.Data, out.DecodeErr = parseBody(raw)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, resp.Status, out.Data),
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		c.logger.Debug("market request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID),
			zap.String("message", apiErr.Message),
		)
		return out, apiErr
	}

	if out.DecodeErr != nil {
		c.logger.Debug("market response is not json",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(out.DecodeErr),
		)
	}
	return out, nil
}

func parseBody(raw []byte) (json.RawMessage, *DecodeError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var probe json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(trimmed), nil
}

func errorMessage(code int, status string, data json.RawMessage) string {
	if data != nil {
		for _, field := range []string{"error", "message"} {
			res := gjson.GetBytes(data, field)
			if res.Exists() && res.Type != gjson.Null && res.String() != "" {
				return res.String()
			}
		}
	}

	text := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return strings.TrimSpace(fmt.Sprintf("HTTP %d %s", code, text))
}
