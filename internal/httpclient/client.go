// Package httpclient provides an outbound HTTP client with a per-attempt timeout,
// exponential backoff and a transient/permanent failure classifier.
//
// The client holds no per-call state. One Client is safe for any number of
// concurrent Execute calls; attempts inside a single call run strictly one after
// another.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// excerptLimit caps how much of a 5xx body is kept in a StatusError.
const excerptLimit = 512

// Log and error formats.
const (
	logFmtRetry        = "Attempt %d/%d %s %s failed, retrying in %s: %v"
	errFmtBuildRequest = "%w: %w"
)

// Logger is the subset of the service logger the client needs.
type Logger interface {
	Warn(format string, args ...any)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Request is a transport-agnostic request description. Body is kept as bytes so
// every attempt can replay it.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a terminal HTTP response. Body stays bound to the attempt timeout:
// reading it after the timeout fails, and closing it releases the attempt.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
	// Attempts is the number of attempts made, including this one.
	Attempts int
}

// Client executes requests with retries.
type Client struct {
	httpClient *http.Client
	log        Logger
	sleep      SleepFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying transport client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(log Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithSleep replaces the backoff sleeper. Tests use it to observe delays.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// New creates a Client. Without options it uses a fresh http.Client with no
// global timeout; the per-attempt timeout passed to Execute bounds each attempt.
func New(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
		log:        nil,
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Post sends a POST request with the given body.
func (c *Client) Post(
	ctx context.Context,
	url string,
	header http.Header,
	body []byte,
	policy RetryPolicy,
	timeout time.Duration,
) (*Response, error) {
	return c.Execute(ctx, Request{Method: http.MethodPost, URL: url, Header: header, Body: body}, policy, timeout)
}

// Get sends a GET request.
func (c *Client) Get(
	ctx context.Context,
	url string,
	header http.Header,
	policy RetryPolicy,
	timeout time.Duration,
) (*Response, error) {
	return c.Execute(ctx, Request{Method: http.MethodGet, URL: url, Header: header, Body: nil}, policy, timeout)
}

// Execute runs req up to policy.MaxRetries+1 times.
//
// It returns the response for a 2xx/3xx status, a *PermanentError for a 4xx
// status and an *ExhaustedError once every attempt failed with a 5xx status or a
// network error. If ctx itself is cancelled the loop stops with an *AbortedError
// wrapping the context error.
func (c *Client) Execute(
	ctx context.Context,
	req Request,
	policy RetryPolicy,
	timeout time.Duration,
) (*Response, error) {
	attempts := policy.Attempts()

	var lastCause error

	for attempt := range attempts {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)
			c.warnRetry(attempt, attempts, req, delay, lastCause)

			sleepErr := c.sleep(ctx, delay)
			if sleepErr != nil {
				return nil, &AbortedError{Attempts: attempt, Cause: sleepErr}
			}
		}

		outcome, buildErr := c.attempt(ctx, req, timeout)
		if buildErr != nil {
			return nil, buildErr
		}

		switch outcome.Kind {
		case OutcomeSuccess:
			outcome.Response.Attempts = attempt + 1

			return outcome.Response, nil
		case OutcomePermanent:
			outcome.Response.Attempts = attempt + 1

			return nil, &PermanentError{Response: outcome.Response}
		case OutcomeRetryable, OutcomeUnknown:
			lastCause = outcome.Cause

			ctxErr := ctx.Err()
			if ctxErr != nil {
				return nil, &AbortedError{Attempts: attempt + 1, Cause: ctxErr}
			}
		}
	}

	return nil, &ExhaustedError{Attempts: attempts, Cause: lastCause}
}

// attempt performs one bounded round trip. The returned error is only set when
// the request could not be built.
func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (Outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)

	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		cancel()

		return Outcome{}, fmt.Errorf(errFmtBuildRequest, ErrInvalidRequest, err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, doErr := c.httpClient.Do(httpReq)
	if doErr != nil {
		cause := doErr
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			cause = newTimeoutError(timeout, doErr)
		}

		cancel()

		return Outcome{Kind: OutcomeRetryable, Response: nil, Cause: cause}, nil
	}

	kind := Classify(resp.StatusCode, nil)
	if kind == OutcomeRetryable {
		excerpt := readExcerpt(resp.Body)
		_ = resp.Body.Close()

		cancel()

		return Outcome{
			Kind:     kind,
			Response: nil,
			Cause:    &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Excerpt: excerpt},
		}, nil
	}

	return Outcome{
		Kind: kind,
		Response: &Response{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
			Attempts:   0,
		},
		Cause: nil,
	}, nil
}

// warnRetry must never interrupt the retry loop, so a misbehaving logger is
// contained here.
func (c *Client) warnRetry(attempt, attempts int, req Request, delay time.Duration, cause error) {
	if c.log == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	c.log.Warn(logFmtRetry, attempt, attempts, req.Method, req.URL, delay, cause)
}

func readExcerpt(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, excerptLimit))
	if err != nil && len(data) == 0 {
		return ""
	}

	return string(bytes.TrimSpace(data))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cancelOnClose releases the attempt context once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser

	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()

	return err
}
