// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package retry

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mcpconnect/authkit/internal/oauth"
)

// Validation range constants for retry configuration parameters.
const (
	MinMaxRetries = 0
	MaxMaxRetries = 10

	MinInitialBackoff = time.Millisecond
	MaxInitialBackoff = 30 * time.Second

	MinBackoffFactor = 1.0
	MaxBackoffFactor = 10.0

	MaxMaxBackoff = 5 * time.Minute
)

// Config defines configuration for the retrying fetch decorator.
//
// The authentication layer never installs this decorator itself; retrying
// transport-level failures is the transport's call. Consumers wrap their
// FetchFunc with Fetch before handing it to a provider when they want
// this behavior.
type Config struct {
	// MaxRetries is the maximum number of retry attempts. Zero disables
	// retrying entirely.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// BackoffFactor multiplies the delay after each retry.
	BackoffFactor float64
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

// DefaultConfig returns a modest retry policy: three attempts starting at
// 500ms and doubling.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     10 * time.Second,
	}
}

// Validate clamps configuration parameters to sensible ranges.
func (c Config) Validate() Config {
	validated := c

	if validated.MaxRetries < MinMaxRetries {
		validated.MaxRetries = MinMaxRetries
	} else if validated.MaxRetries > MaxMaxRetries {
		validated.MaxRetries = MaxMaxRetries
	}

	if validated.InitialBackoff < MinInitialBackoff {
		validated.InitialBackoff = MinInitialBackoff
	} else if validated.InitialBackoff > MaxInitialBackoff {
		validated.InitialBackoff = MaxInitialBackoff
	}

	if validated.BackoffFactor < MinBackoffFactor {
		validated.BackoffFactor = MinBackoffFactor
	} else if validated.BackoffFactor > MaxBackoffFactor {
		validated.BackoffFactor = MaxBackoffFactor
	}

	if validated.MaxBackoff < validated.InitialBackoff {
		validated.MaxBackoff = validated.InitialBackoff
	} else if validated.MaxBackoff > MaxMaxBackoff {
		validated.MaxBackoff = MaxMaxBackoff
	}

	return validated
}

// IsRetryableStatus reports whether an HTTP status code warrants a retry:
// 408, 409, 429, and all 5xx.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

// IsRetryableError determines if a transport error is retryable based on
// its characteristics. Precise patterns avoid false positives.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection timeout") ||
		strings.Contains(errStr, "connection lost") ||
		strings.Contains(errStr, "connection aborted") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "read timeout") ||
		strings.Contains(errStr, "write timeout") ||
		strings.Contains(errStr, "dial timeout") ||
		errStr == "eof" ||
		strings.HasSuffix(errStr, ": eof")
}

// statusError marks a retryable HTTP status inside the retry loop.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retryable status %d from %s", e.code, e.url)
}

// Fetch wraps a FetchFunc with exponential-backoff retrying. Requests
// whose bodies cannot be replayed (non-nil Body without GetBody) are
// passed through without retrying.
func Fetch(inner oauth.FetchFunc, cfg Config) oauth.FetchFunc {
	cfg = cfg.Validate()
	if inner == nil {
		inner = oauth.DefaultFetch
	}

	return func(urlStr string, req *http.Request) (*http.Response, error) {
		if cfg.MaxRetries == 0 || (req.Body != nil && req.GetBody == nil) {
			return inner(urlStr, req)
		}

		operation := func() (*http.Response, error) {
			attempt := req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				attempt.Body = body
			}

			resp, err := inner(urlStr, attempt)
			if err != nil {
				if IsRetryableError(err) {
					return nil, err
				}
				return nil, backoff.Permanent(err)
			}
			if IsRetryableStatus(resp.StatusCode) {
				resp.Body.Close()
				return nil, &statusError{code: resp.StatusCode, url: urlStr}
			}
			return resp, nil
		}

		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = cfg.InitialBackoff
		expo.Multiplier = cfg.BackoffFactor
		expo.MaxInterval = cfg.MaxBackoff

		return backoff.Retry(req.Context(), operation,
			backoff.WithBackOff(expo),
			backoff.WithMaxTries(uint(cfg.MaxRetries+1)),
		)
	}
}
