// Package httpclient is the HTTP client shared by polling frontends.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/infrastructure/resilience"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrStatus is returned for responses outside the 2xx range.
var ErrStatus = errors.New("unexpected HTTP status")

// Client wraps resty with rate limiting and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex

	name    string
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Options configures a client
type Options struct {
	// Name labels the breaker, logs and metrics
	Name      string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	// RateLimit is the request rate per second, unlimited when zero
	RateLimit float64
	BasicAuth *config.BasicAuth
	Breaker   resilience.Settings
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

// DefaultOptions returns the options used by polling frontends
func DefaultOptions(name string) Options {
	return Options{
		Name:      name,
		Timeout:   30 * time.Second,
		Retries:   2,
		RetryWait: 500 * time.Millisecond,
	}
}

// New creates a client
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.With(zap.String("frontend", opts.Name))

	// Only the pooled transport of the retryable client is used; retries
	// are handled by resty
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait*10).
		SetHeader("User-Agent", "iot2db/1.0").
		SetHeader("Accept", "application/json")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	if auth := opts.BasicAuth; auth != nil {
		password := ""
		if auth.Password != nil {
			password = *auth.Password
		}
		restyClient.SetBasicAuth(auth.Username, password)
	}

	breakerSettings := opts.Breaker
	onChange := breakerSettings.OnStateChange
	breakerSettings.OnStateChange = func(name string, from, to resilience.State) {
		logger.Info("Circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	return &Client{
		Resty:   restyClient,
		Limiter: limiter,
		Breaker: resilience.New(opts.Name, breakerSettings),
		name:    opts.Name,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Request creates a new request after waiting for the rate limiter
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Execute runs one request through the breaker. Responses outside the 2xx
// range count as failures.
func (c *Client) Execute(ctx context.Context, method, url string, prepare func(*resty.Request)) (*resty.Response, error) {
	var resp *resty.Response
	err := c.Breaker.Do(func() error {
		req, err := c.Request(ctx)
		if err != nil {
			return err
		}
		if prepare != nil {
			prepare(req)
		}

		start := time.Now()
		resp, err = req.Execute(method, url)
		if err != nil {
			c.metrics.RecordHTTPRequest(method, c.name, "error", time.Since(start))
			return fmt.Errorf("%s %s: %w", method, url, err)
		}
		c.metrics.RecordHTTPRequest(method, c.name, fmt.Sprint(resp.StatusCode()), time.Since(start))

		if !resp.IsSuccess() {
			return fmt.Errorf("%w: %s %s: %s", ErrStatus, method, url, resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetDocument fetches url and decodes the body.
func (c *Client) GetDocument(ctx context.Context, url string) (document.Document, error) {
	resp, err := c.Execute(ctx, resty.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	doc, err := document.Decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode response of %s: %w", url, err)
	}
	return doc, nil
}

// PostDocument posts body as JSON and decodes the response.
func (c *Client) PostDocument(ctx context.Context, url string, body any) (document.Document, error) {
	payload, err := document.Encode(body)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", url, err)
	}

	resp, err := c.Execute(ctx, resty.MethodPost, url, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	})
	if err != nil {
		return nil, err
	}
	doc, err := document.Decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode response of %s: %w", url, err)
	}
	return doc, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}
