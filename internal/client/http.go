package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledSlog adapts slog to retryablehttp. Intermediate failures are retried,
// so they are logged as warnings rather than errors.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type retryOptions struct {
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

// newReadClient returns an http.Client that retries idempotent reads on
// connection errors and 5xx (except 501). 429 is handed back to the caller.
func newReadClient(transport http.RoundTripper, timeout time.Duration, opts retryOptions, log *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = transport
	rc.RetryMax = opts.maxRetries
	rc.RetryWaitMin = opts.waitMin
	rc.RetryWaitMax = opts.waitMax
	rc.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: log})
	rc.CheckRetry = retryPolicy

	c := rc.StandardClient()
	c.Timeout = timeout
	return c
}

// newWriteClient never retries: a mutation that timed out may already have
// been applied, and the caller decides what to do next.
func newWriteClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{Transport: transport, Timeout: timeout}
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func defaultTransport() http.RoundTripper {
	return cleanhttp.DefaultPooledTransport()
}
