// Package resilience provides the retry engine, rate limiter and circuit
// breaker used by every remote adapter, plus the error taxonomy they share.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Class is the retry classification of an error.
type Class int

const (
	ClassFatal Class = iota
	ClassRetryable
	ClassRateLimited
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// HTTPError is a non-2xx response from a remote API.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: API returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Auth reports whether the response was an authentication failure.
func (e *HTTPError) Auth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// RateLimitError signals that a remote API throttled the caller.
// RetryAfter is zero when the server gave no hint.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limit exceeded (retry after %s)", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limit exceeded", e.Service)
}

// InvalidResponseError is a well-formed HTTP exchange whose body does not
// have the expected shape. Retrying will not help.
type InvalidResponseError struct {
	Service string
	Reason  string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: invalid response: %s", e.Service, e.Reason)
}

// ValidationError is a request that could not be built from its inputs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Reason)
}

// CheckResponse converts a non-2xx response into a typed error. The body is
// consumed on failure; on success the response is returned untouched.
func CheckResponse(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Service: service, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return &HTTPError{Service: service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Classify maps err onto the retry taxonomy.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	// Deadline errors fall through to the net.Error branch: a per-request
	// timeout is retryable, and the retrier stops on its own expired context.
	if errors.Is(err, context.Canceled) {
		return ClassFatal
	}
	if errors.Is(err, ErrBreakerOpen) || errors.Is(err, ErrQueueFull) {
		return ClassFatal
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return ClassRateLimited
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimited
		case httpErr.StatusCode >= 500:
			return ClassRetryable
		default:
			return ClassFatal
		}
	}
	var invalid *InvalidResponseError
	if errors.As(err, &invalid) {
		return ClassFatal
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return ClassFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryable
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ClassRetryable
	}
	return classifyMessage(err.Error())
}

// classifyMessage is the fallback for untyped errors from SDKs that only
// expose a message.
func classifyMessage(msg string) Class {
	lower := strings.ToLower(msg)
	for _, p := range []string{"rate limit", "rate_limit", "too many requests", "429"} {
		if strings.Contains(lower, p) {
			return ClassRateLimited
		}
	}
	retryablePatterns := []string{
		"timeout", "timed out", "connection reset", "connection refused",
		"socket hang up", "network", "no such host", "eof",
		"500", "502", "503", "504", "overloaded", "capacity",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return ClassRetryable
		}
	}
	return ClassFatal
}
