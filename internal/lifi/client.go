// Package lifi talks to the LI.FI routing API and normalizes its responses
// into the swap pipeline's quote schema.
package lifi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/cache"
	"github.com/yourorg/xbridge-api/internal/circuitbreaker"
	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/model"
)

// DefaultBaseURL is the public LI.FI API
const DefaultBaseURL = "https://li.quest/v1"

// DefaultGasLimit is the fixed gas ceiling attached to built transactions
const DefaultGasLimit uint64 = 3000000

// maxResponseBytes bounds how much of an upstream body is read
const maxResponseBytes = 8 << 20

// Config holds the routing client settings. BreakerSuccesses is the number
// of half-open trial calls that must succeed before the breaker closes.
// Diamonds maps a chain id to the LI.FI diamond that built routes must target.
type Config struct {
	BaseURL          string
	APIKey           string
	Integrator       string
	Timeout          time.Duration
	RetryMax         int
	GasLimit         uint64
	BreakerFailures  int
	BreakerSuccesses int
	BreakerCooldown  time.Duration
	Diamonds         map[string]string
}

// AdapterResolver finds the swap adapter deployed on a chain
type AdapterResolver interface {
	AdapterAddress(ctx context.Context, chainID string) (common.Address, error)
}

// Hooks receives observability events
type Hooks struct {
	CacheResult   func(hit bool)
	UpstreamError func(endpoint string)
	BreakerTrip   func(reason string)
}

// Client is the routing API client
type Client struct {
	cfg      Config
	http     *retryablehttp.Client
	quotes   cache.Store[model.Quote]
	adapters AdapterResolver
	breaker  *circuitbreaker.CircuitBreaker
	hooks    Hooks
}

// New creates a client. quotes memoizes GetQuote; adapters resolves the
// transaction target for BuildTransaction.
func New(cfg Config, quotes cache.Store[model.Quote], adapters AdapterResolver) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerSuccesses <= 0 {
		cfg.BreakerSuccesses = 1
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	c := &Client{
		cfg:      cfg,
		http:     newRetryClient(cfg),
		quotes:   quotes,
		adapters: adapters,
	}
	c.breaker = circuitbreaker.New("lifi", cfg.BreakerFailures).
		WithResetDelay(cfg.BreakerCooldown).
		WithSuccessThreshold(cfg.BreakerSuccesses).
		WithFailurePredicate(countsAgainstUpstream).
		WithTripCallback(c.breakerTripped)
	return c
}

// breakerTripped forwards a breaker trip to the hooks
func (c *Client) breakerTripped(reason string) {
	if c.hooks.BreakerTrip != nil {
		c.hooks.BreakerTrip(reason)
	}
}

// WithHooks sets observability callbacks and returns the client
func (c *Client) WithHooks(h Hooks) *Client {
	c.hooks = h
	return c
}

// Breaker exposes the upstream circuit breaker for health reporting
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(cfg Config) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	// hand the final response back so status codes survive exhausted retries
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = newLeveledLogger("lifi")
	return rc
}

// StatusError is a non-2xx answer from the routing API
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
}

// countsAgainstUpstream reports whether err says the routing API is unhealthy.
// Client errors and caller cancellation do not.
func countsAgainstUpstream(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// get issues GET path?query through the breaker and returns the raw body
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := c.breaker.Execute(func() error {
		var err error
		body, err = c.do(ctx, path, query)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, errs.Wrap(errs.Upstream, errs.UpstreamUnavailable, err, "routing API temporarily disabled")
	}
	if err != nil && c.hooks.UpstreamError != nil {
		c.hooks.UpstreamError(path)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logrus.WithFields(logrus.Fields{"endpoint": path, "error": err}).Warn("Routing API request failed")
		return nil, fmt.Errorf("error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading %s response: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Routing API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Message: upstreamMessage(body)}
		logrus.WithFields(logrus.Fields{"endpoint": path, "status": resp.StatusCode, "message": se.Message}).Warn("Routing API error response")
		return nil, se
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*retryablehttp.Request, error) {
	target := c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-lifi-api-key", c.cfg.APIKey)
	}
	return req, nil
}

func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ProxyResponse is a routing API answer relayed verbatim
type ProxyResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Proxy forwards a GET for path and query to the routing API and returns the
// upstream status and body unchanged, including error statuses.
func (c *Client) Proxy(ctx context.Context, path string, query url.Values) (ProxyResponse, error) {
	if strings.Contains(path, "..") {
		return ProxyResponse{}, errs.Field(errs.MissingParameter, "path", "invalid proxy path")
	}
	var out ProxyResponse
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req, err := c.newRequest(ctx, path, query)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		out = ProxyResponse{StatusCode: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &StatusError{Endpoint: path, StatusCode: resp.StatusCode}
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ProxyResponse{}, errs.Wrap(errs.Upstream, errs.UpstreamUnavailable, err, "routing API temporarily disabled")
	}
	var se *StatusError
	if errors.As(err, &se) {
		// upstream 5xx is relayed, not converted
		return out, nil
	}
	if err != nil {
		return ProxyResponse{}, errs.Wrap(errs.Upstream, errs.UpstreamUnavailable, err, "routing API unreachable")
	}
	return out, nil
}

// isNotFound reports a 404 or a NOT_FOUND payload from the routing API
func isNotFound(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusNotFound || strings.Contains(strings.ToUpper(se.Message), "NOT_FOUND")
}
