package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/desertthunder/zester/internal/shared"
)

// StatusError is a non-2xx response. It unwraps to the sentinel matching its status class so callers
// can use [errors.Is] with [shared.ErrTransient], [shared.ErrNotAuthenticated] and friends.
type StatusError struct {
	StatusCode int
	URL        string
}

// NewStatusError creates a [StatusError], dropping the query string so credentials never reach logs.
func NewStatusError(code int, rawURL string) *StatusError {
	if u, err := url.Parse(rawURL); err == nil {
		u.RawQuery = ""
		rawURL = u.String()
	}
	return &StatusError{StatusCode: code, URL: rawURL}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.StatusCode >= 500:
		return shared.ErrTransient
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return shared.ErrNotAuthenticated
	default:
		return shared.ErrAPIRequest
	}
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// requestError classifies a failure from [http.Client.Do]. Cancellation passes through untouched;
// timeouts are transient; anything else is a failed request.
func requestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", shared.ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}
