package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v72/github"
)

// ErrorKind is a coarse diagnosis of a failed GitHub request.
type ErrorKind int

const (
	ErrorKindGeneric ErrorKind = iota
	ErrorKindRateLimit
	ErrorKindNotFound
	ErrorKindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindRateLimit:
		return "rate_limit"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindTimeout:
		return "timeout"
	default:
		return "generic"
	}
}

// Classify diagnoses err from either the REST or the GraphQL client.
// GitHub returns 403 when the primary rate limit is exceeded and 429 for
// secondary limits; GraphQL reports both inside the response body.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindGeneric
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return ErrorKindRateLimit
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch status := respErr.Response.StatusCode; {
		case status == http.StatusNotFound:
			return ErrorKindNotFound
		case status == http.StatusTooManyRequests:
			return ErrorKindRateLimit
		case status == http.StatusForbidden && isRateLimitMessage(respErr.Message):
			return ErrorKindRateLimit
		}
		return ErrorKindGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout
	}

	// GraphQL errors carry no type, only a message.
	msg := strings.ToLower(err.Error())
	switch {
	case isRateLimitMessage(msg):
		return ErrorKindRateLimit
	case strings.Contains(msg, "could not resolve to a repository"),
		strings.Contains(msg, "status code: 404"):
		return ErrorKindNotFound
	}
	return ErrorKindGeneric
}

func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

// recoverFetch logs a failed request with its diagnosis. It returns nil
// for every transport failure; only cancellation of ctx propagates.
func (c *Client) recoverFetch(ctx context.Context, repo, what string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("fetch %s for %s: %w", what, repo, err)
	}

	kind := Classify(err)
	attrs := []any{"repo", repo, "resource", what, "kind", kind.String(), "error", err}
	switch kind {
	case ErrorKindRateLimit:
		c.logger.Warn("GitHub rate limit exceeded", attrs...)
	case ErrorKindNotFound:
		c.logger.Warn("repository not found or insufficient permissions", attrs...)
	case ErrorKindTimeout:
		c.logger.Warn("GitHub request timed out", attrs...)
	default:
		c.logger.Error("GitHub request failed", attrs...)
	}
	return nil
}
