package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dropDatabas3/schoolgate/internal/metrics"
	"github.com/dropDatabas3/schoolgate/internal/observability/tracing"
)

const (
	// DefaultTimeout bounds every backend call when none is configured.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 8 << 20
)

// Call describes one backend request. Path is relative to the base URL and
// already has its parameters expanded.
type Call struct {
	Route     string
	Method    string
	Path      string
	RawQuery  string
	Body      []byte
	Token     string
	TenantID  string
	RequestID string
}

// Response is a fully read backend answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    *Breaker
}

// Client calls the backend. Every call is bounded by WithTimeout and, when a
// breaker is configured, guarded by it.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *Breaker
}

// NewClient builds a Client. BaseURL is normalized with NormalizeBaseURL.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: NormalizeBaseURL(opts.BaseURL),
		timeout: timeout,
		http:    hc,
		breaker: opts.Breaker,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Breaker returns the configured breaker or nil.
func (c *Client) Breaker() *Breaker { return c.breaker }

// Do sends call to the backend. Non-2xx answers are not errors: they come back
// as a Response. Errors are ErrUpstreamTimeout, ErrCircuitOpen, a cancelled
// context or a transport failure.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "upstream "+call.Route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			tracing.StringAttr("http.method", call.Method),
			tracing.StringAttr("upstream.path", call.Path),
		),
	)
	defer span.End()

	start := time.Now()
	exec := func(ctx context.Context) (*Response, error) {
		return WithTimeout(ctx, c.timeout, func(ctx context.Context) (*Response, error) {
			return c.roundTrip(ctx, call)
		})
	}

	var (
		resp *Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(ctx, exec)
	} else {
		resp, err = exec(ctx)
	}

	metrics.UpstreamDuration.WithLabelValues(call.Route).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.UpstreamRequests.WithLabelValues(call.Route, strconv.Itoa(resp.Status)).Inc()
		span.SetAttributes(tracing.IntAttr("http.status_code", resp.Status))
		if resp.Status >= 500 {
			tracing.RecordError(span, fmt.Errorf("upstream status %d", resp.Status))
		} else {
			tracing.SetOK(span)
		}
	case errors.Is(err, ErrUpstreamTimeout):
		metrics.UpstreamTimeouts.WithLabelValues(call.Route).Inc()
		metrics.UpstreamRequests.WithLabelValues(call.Route, "timeout").Inc()
		tracing.RecordError(span, err)
	case errors.Is(err, ErrCircuitOpen):
		metrics.UpstreamRequests.WithLabelValues(call.Route, "circuit_open").Inc()
		tracing.RecordError(span, err)
	default:
		metrics.UpstreamRequests.WithLabelValues(call.Route, "error").Inc()
		tracing.RecordError(span, err)
	}
	return resp, err
}

// URL returns the absolute backend URL for call.
func (c *Client) URL(call Call) string {
	p := call.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := c.baseURL + p
	if call.RawQuery != "" {
		u += "?" + call.RawQuery
	}
	return u
}

func (c *Client) roundTrip(ctx context.Context, call Call) (*Response, error) {
	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, c.URL(call), body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if call.Token != "" {
		req.Header.Set("Authorization", "Bearer "+call.Token)
	}
	if call.TenantID != "" {
		req.Header.Set("X-Tenant-ID", call.TenantID)
	}
	if call.RequestID != "" {
		req.Header.Set("X-Request-ID", call.RequestID)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", call.Method, call.Path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return &Response{Status: res.StatusCode, Header: res.Header.Clone(), Body: data}, nil
}
