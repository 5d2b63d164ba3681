package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the circuit to the rempl server is open
var ErrUnavailable = errors.New("rempl server unavailable: circuit breaker open")

// Config configures the rempl server client
type Config struct {
	Timeout    time.Duration
	Retries    int
	RetryWait  time.Duration
	RatePerSec float64 // 0 means unlimited
	UserAgent  string
	Logger     *zap.Logger
}

// DefaultConfig returns the client defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		Retries:   2,
		RetryWait: 500 * time.Millisecond,
		UserAgent: "rempl-host/1.0",
	}
}

// Client talks to the rempl server over HTTP with rate limiting, retries and
// a circuit breaker
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewClient creates a rempl server client
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("remote")

	// Retries happen in the round tripper so every attempt shares the
	// request's context and the breaker sees one outcome per call.
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 4 * cfg.RetryWait

	restyClient := resty.New().
		SetTransport(retryClient.StandardClient().Transport).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), int(cfg.RatePerSec)+1)
	}

	breaker := resilience.New("rempl-server", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker changed state",
				zap.String("name", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}
}

// Breaker exposes the circuit breaker state
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// SetTimeout configures request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetTimeout(d)
}

// request creates a rate limited request bound to ctx
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.breaker.State() == resilience.StateOpen {
		return nil, ErrUnavailable
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resty.R().SetContext(ctx), nil
}

// get performs a GET through the breaker. Server errors count as failures;
// client errors do not.
func (c *Client) get(ctx context.Context, url string, accept string) (*resty.Response, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetHeader("Accept", accept)

	resp, err := resilience.Call(c.breaker, func() (*resty.Response, error) {
		resp, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("HTTP %d from %s", resp.StatusCode(), url)
		}
		return resp, nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %d: %s (url: %s)", resp.StatusCode(), resp.Status(), url)
	}
	return resp, nil
}

// ProbeResult describes a reachable rempl server
type ProbeResult struct {
	URL         string        `json:"url"`
	Status      int           `json:"status"`
	ContentType string        `json:"content_type"`
	Latency     time.Duration `json:"latency"`
}

// Probe checks that url answers with a non-error status
func (c *Client) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	start := time.Now()
	resp, err := c.get(ctx, url, "*/*")
	if err != nil {
		c.logger.Debug("Probe failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	return &ProbeResult{
		URL:         url,
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Latency:     time.Since(start),
	}, nil
}

// Page is a fetched document
type Page struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// Fetch retrieves url
func (c *Client) Fetch(ctx context.Context, url string) (*Page, error) {
	resp, err := c.get(ctx, url, "text/html,application/javascript;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:         url,
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}
