package httputil

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// RetryConfig controls backoff for idempotent requests. Callers must not
// route non-idempotent writes through a RetryClient.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// backoff returns the delay before retry number attempt, starting at 1.
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt && delay < c.MaxDelay; i++ {
		delay = time.Duration(float64(delay) * c.Multiplier)
	}
	return min(delay, c.MaxDelay)
}

type RetryClient struct {
	client *http.Client
	config RetryConfig
}

func NewRetryClient(client *http.Client, config RetryConfig) *RetryClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RetryClient{
		client: client,
		config: config.withDefaults(),
	}
}

// Do sends req, retrying on 429, 5xx and transient network errors. The
// response of the final attempt is returned as is.
func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return nil, err
			}
			if err := wait(req.Context(), jitter(c.config.backoff(attempt))); err != nil {
				return nil, err
			}
		}

		resp, err := c.client.Do(req)
		if attempt == c.config.MaxRetries || !shouldRetry(resp, err) {
			return resp, err
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
	}
}

func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		var opErr *net.OpError
		var dnsErr *net.DNSError
		return errors.As(err, &opErr) || errors.As(err, &dnsErr)
	}

	return resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode >= 500 && resp.StatusCode < 600)
}

// jitter spreads d by ±10%.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + rand.Float64()*0.2))
}
