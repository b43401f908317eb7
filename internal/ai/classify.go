package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Class is how an AI call failure should be handled
type Class int

const (
	// Transient failures are retried with backoff
	Transient Class = iota
	// QuotaExhausted failures stop all AI calls for the cooldown window
	QuotaExhausted
	// Fatal failures are returned without retrying
	Fatal
)

func (c Class) String() string {
	switch c {
	case QuotaExhausted:
		return "quota_exhausted"
	case Fatal:
		return "fatal"
	default:
		return "transient"
	}
}

// ErrAIDisabled is returned by every call when no API key is configured
var ErrAIDisabled = errors.New("ai: api key is not configured")

// APIError is an error payload or non-2xx response from the API
type APIError struct {
	// StatusCode is the HTTP status of the response, zero if unknown
	StatusCode int
	// Code is the numeric code from the error body
	Code int
	// Status is the textual status from the error body, e.g. RESOURCE_EXHAUSTED
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai api error: http %d, code %d, status %q: %s", e.StatusCode, e.Code, e.Status, e.Message)
}

// status returns the HTTP status, falling back to a body code that looks like one
func (e *APIError) status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	if e.Code >= 200 && e.Code <= 599 {
		return e.Code
	}
	return 0
}

var quotaMarkers = []string{
	"resource_exhausted",
	"resource exhausted",
	"quota_exceeded",
	"quota exceeded",
	"rate_limit_exceeded",
	"rate limit",
	"ratelimit",
	"too many requests",
}

// ClassifyError decides how a failed call is handled. Only a missing API key
// and caller cancellation are fatal; everything that is not quota exhaustion
// is worth another attempt.
func ClassifyError(err error) Class {
	if err == nil {
		return Transient
	}
	if errors.Is(err, ErrAIDisabled) || errors.Is(err, context.Canceled) {
		return Fatal
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.status() == http.StatusTooManyRequests {
			return QuotaExhausted
		}
		if containsAny(strings.ToLower(apiErr.Status), quotaMarkers) {
			return QuotaExhausted
		}
	}
	if containsAny(strings.ToLower(err.Error()), quotaMarkers) {
		return QuotaExhausted
	}
	return Transient
}

// rateLimited reports an overloaded server. It only changes the wording of
// the final failure notice; rate-limit wording is quota exhaustion.
func rateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.status() == http.StatusServiceUnavailable {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), []string{"overloaded", "unavailable", "server is busy"})
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
