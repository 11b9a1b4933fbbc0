package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/tracing"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 10 * time.Second

// UserAgent is sent on every outbound request.
const UserAgent = "AutomataNexus-Portal/1.0"

// Client wraps resty with an optional outbound rate limit. Configure it
// before sharing it between goroutines.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
}

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond limits outbound calls; zero means unlimited.
	RatePerSecond float64
}

// New creates a client. Requests are never retried.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	restyClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(int(opts.RatePerSecond), 1))
	}

	return &Client{
		resty:   restyClient,
		limiter: limiter,
	}
}

// SetBearerAuth configures bearer token authentication
func (c *Client) SetBearerAuth(token string) {
	c.resty.SetAuthToken(token)
}

// Request creates a request bound to ctx, carrying the trace headers of ctx.
// It waits for the outbound rate limit first.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req := c.resty.R().SetContext(ctx)
	tracing.Inject(ctx, req.Header)
	return req, nil
}
