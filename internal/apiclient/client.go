package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/angelmondragon/engagement-dashboard/pkg/metrics"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultClientVersion = "1.0.0"
	maxResponseBytes     = 64 << 20

	HeaderRequestID     = "X-Request-Id"
	HeaderClientVersion = "X-Client-Version"
)

var errCancelledAll = errors.New("in-flight requests cancelled")

// Client talks to the engagement backend with per-method retries, correlation ids and
// generation-based cancellation.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	version    string
	logg       *logger.Logger
	metrics    *metrics.ClientMetrics
	sleep      func(context.Context, time.Duration) error
	jitter     func() time.Duration
	now        func() time.Time

	seq atomic.Uint64

	mu        sync.Mutex
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Its Timeout is replaced by the per-attempt timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClientVersion(version string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(version); v != "" {
			c.version = v
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSleeper replaces the backoff wait. The function must return ctx.Err() when ctx ends first.
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithJitter replaces the random [0,1s) jitter source.
func WithJitter(fn func() time.Duration) Option {
	return func(c *Client) {
		if fn != nil {
			c.jitter = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, configError(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, configError(fmt.Errorf("base url %q must be absolute", baseURL))
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		version:    defaultClientVersion,
		logg:       logger.Nop(),
		sleep:      sleepContext,
		jitter:     func() time.Duration { return rand.N(time.Second) },
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	hc := *c.httpClient
	hc.Timeout = c.timeout
	c.httpClient = &hc

	c.genCtx, c.genCancel = context.WithCancel(context.Background())
	return c, nil
}

// Request describes one logical call. Body is buffered so each retry resends it intact.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	// Operation labels logs and metrics; defaults to the path.
	Operation string
}

// Response is a successful (<400) reply plus the identity it was issued under.
type Response struct {
	Status        int
	Header        http.Header
	Body          []byte
	Generation    uint64
	CorrelationID uint64
	Attempts      int
	Elapsed       time.Duration
}

// Generation returns the current cancellation generation.
func (c *Client) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// IsCurrent reports whether gen has not been invalidated by CancelAll.
func (c *Client) IsCurrent(gen uint64) bool {
	return c.Generation() == gen
}

// CancelAll aborts every in-flight request and starts a new generation. Responses that
// still arrive carry the old generation and should be discarded by the caller.
func (c *Client) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genCancel()
	c.gen++
	c.genCtx, c.genCancel = context.WithCancel(context.Background())
}

// Send executes req under the method's retry policy. Every error is an *Error.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Operation == "" {
		req.Operation = req.Path
	}
	policy := PolicyFor(req.Method)

	ctx, gen, release := c.bind(ctx)
	defer release()

	id := c.seq.Add(1)
	ctx = c.logg.WithCorrelationID(ctx, id)
	ctx = c.logg.WithFields(ctx, map[string]any{
		"method":     req.Method,
		"path":       req.Path,
		"generation": gen,
	})

	target, err := c.resolve(req)
	if err != nil {
		c.metrics.IncFailure(req.Operation, string(err.Code))
		c.logg.Warn(ctx, "client.request.invalid")
		return nil, err
	}

	start := c.now()
	var last *Error
	for attempt := 0; ; attempt++ {
		c.metrics.IncAttempt(req.Method, req.Operation)
		c.logg.Debug(c.logg.WithField(ctx, "attempt", attempt+1), "client.request")

		resp, reqErr := c.attempt(ctx, req, target, id)
		if reqErr == nil {
			resp.Generation = gen
			resp.CorrelationID = id
			resp.Attempts = attempt + 1
			resp.Elapsed = c.now().Sub(start)
			c.metrics.ObserveDuration(req.Operation, resp.Elapsed)
			c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
				"status":      resp.Status,
				"attempts":    resp.Attempts,
				"duration_ms": resp.Elapsed.Milliseconds(),
				"size":        len(resp.Body),
			}), "client.response")
			return resp, nil
		}
		last = reqErr

		if !reqErr.Retryable() || attempt >= policy.MaxRetries {
			break
		}

		delay := policy.Backoff(attempt, c.jitter())
		c.metrics.IncRetry(req.Method, req.Operation)
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"attempt":    attempt + 1,
			"error_code": reqErr.Code,
			"status":     reqErr.HTTPStatus,
			"delay_ms":   delay.Milliseconds(),
		}), "client.request.retry")

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			last = cancelledError(sleepErr)
			break
		}
	}

	elapsed := c.now().Sub(start)
	c.metrics.IncFailure(req.Operation, string(last.Code))
	c.metrics.ObserveDuration(req.Operation, elapsed)
	c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
		"error_code":  last.Code,
		"error_kind":  last.Kind,
		"status":      last.HTTPStatus,
		"duration_ms": elapsed.Milliseconds(),
	}), "client.request.failed")
	return nil, last
}

// bind derives a context that ends with either the caller's ctx or the current generation.
func (c *Client) bind(ctx context.Context) (context.Context, uint64, func()) {
	c.mu.Lock()
	gen, genCtx := c.gen, c.genCtx
	c.mu.Unlock()

	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(genCtx, func() { cancel(errCancelledAll) })
	return ctx, gen, func() {
		stop()
		cancel(nil)
	}
}

func (c *Client) resolve(req Request) (string, *Error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return "", configError(err)
	}
	u := c.baseURL.ResolveReference(ref)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String(), nil
}

func (c *Client) attempt(ctx context.Context, req Request, target string, id uint64) (*Response, *Error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, configError(err)
	}
	httpReq.Header.Set(HeaderRequestID, strconv.FormatUint(id, 10))
	httpReq.Header.Set(HeaderClientVersion, c.version)
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelledError(context.Cause(ctx))
		}
		var netErr interface{ Timeout() bool }
		timeout := errors.As(err, &netErr) && netErr.Timeout()
		return nil, networkError(err, timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelledError(context.Cause(ctx))
		}
		return nil, networkError(err, false)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(resp.StatusCode, payload)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: payload}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
