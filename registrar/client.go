// Package registrar talks to the Banner student registration service: it
// establishes term-scoped sessions and pulls department and course listings.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/aggieschedule/registrar-scraper/config"
	"github.com/aggieschedule/registrar-scraper/term"
)

var tracer = otel.Tracer("registrar")

const (
	endpointSession     = "session"
	endpointCourses     = "courses"
	endpointDepartments = "departments"
	endpointTerms       = "terms"
)

// Client issues requests against one registrar deployment for one term.
// It holds no session state; tokens are passed to every call that needs one.
type Client struct {
	cfg     *config.Config
	term    term.Term
	http    *resty.Client
	limiter *rate.Limiter
	Metrics *Metrics

	requestCount int64
	retryCount   int64
	renewalCount int64
}

// NewClient builds a client bound to t.
func NewClient(cfg *config.Config, t term.Term) (*Client, error) {
	if t.IsZero() {
		return nil, fmt.Errorf("%w: term is required", ErrInvalidArgument)
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	// Cookies travel on the SessionToken, never in a shared jar.
	httpClient.SetCookieJar(nil)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetHeader("Accept", "application/json, text/javascript, */*; q=0.01")
	httpClient.SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Parallelism,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	httpClient.SetRetryCount(cfg.MaxRetries)
	httpClient.SetRetryWaitTime(cfg.RetryBackoff)
	if cfg.RetryBackoffMax > 0 {
		httpClient.SetRetryMaxWaitTime(cfg.RetryBackoffMax)
	}
	httpClient.AddRetryCondition(shouldRetry)

	c := &Client{
		cfg:     cfg,
		term:    t,
		http:    httpClient,
		Metrics: NewMetrics(),
	}

	// Retry hooks also run after the final attempt; retries are counted in do.
	httpClient.AddRetryHook(func(res *resty.Response, err error) {
		if res == nil || res.Request == nil || res.Request.Attempt > cfg.MaxRetries {
			return
		}
		slog.Debug("retrying registrar request",
			slog.Int("attempt", res.Request.Attempt),
			slog.Int("status", res.StatusCode()),
			slog.Any("error", err),
		)
	})

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			return c.limiter.Wait(r.Context())
		})
	}

	return c, nil
}

// WithTransport replaces the HTTP transport, mainly for tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// Term returns the term the client is bound to.
func (c *Client) Term() term.Term {
	return c.term
}

// RequestCount returns the number of logical requests issued, excluding retries.
func (c *Client) RequestCount() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

// RetryCount returns the number of retry attempts made.
func (c *Client) RetryCount() int {
	return int(atomic.LoadInt64(&c.retryCount))
}

// RenewalCount returns the number of sessions re-created after expiry.
func (c *Client) RenewalCount() int {
	return int(atomic.LoadInt64(&c.renewalCount))
}

// do sends one logical request and maps client failures to ErrTransport.
// A cancelled ctx is returned as-is so callers can tell it apart from the network.
func (c *Client) do(ctx context.Context, endpoint string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	atomic.AddInt64(&c.requestCount, 1)
	c.Metrics.IncRequest(endpoint)

	start := time.Now()
	req := c.http.R().SetContext(ctx)
	res, err := send(req)
	c.Metrics.ObserveDuration(endpoint, time.Since(start))
	if retries := req.Attempt - 1; retries > 0 {
		atomic.AddInt64(&c.retryCount, int64(retries))
		c.Metrics.AddRetries(retries)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.fail(ClassifyError(endpoint, err, 0))
	}
	return res, nil
}

// fail records err in metrics and returns it.
func (c *Client) fail(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		c.Metrics.IncError(ErrorType(err))
	}
	return err
}

func shouldRetry(res *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if res == nil {
		return false
	}
	status := res.StatusCode()
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
