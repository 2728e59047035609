package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Transient errors: retried with backoff, only observable through events
	ErrTransient   = fmt.Errorf("transient server error")
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrTransient)

	// Per-item errors: reported once, the item is skipped
	ErrNoPlayableMedia  = fmt.Errorf("no playable media")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrIncompleteRecord = fmt.Errorf("incomplete record")
	ErrAPIRequest       = fmt.Errorf("API request failed")

	// Fatal errors: abort the current phase
	ErrMalformedResponse  = fmt.Errorf("malformed response")
	ErrRetriesExhausted   = fmt.Errorf("retries exhausted")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrInputNotFound      = fmt.Errorf("expected input file not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsTransient reports whether err is a retryable server-side failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatal reports whether err must abort the whole phase rather than a single item.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrInputNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

// Remediation returns a short hint for presenting a fatal error to the user.
// An empty string means there is nothing more specific to say.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrInputNotFound):
		return "run `zester fetch all` first to capture metadata"
	case errors.Is(err, ErrMissingCredentials):
		return "run `zester setup credentials` or set ZESTER_OAUTH_TOKEN and ZESTER_CLIENT_ID"
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidCredentials):
		return "the OAuth token was rejected; capture a fresh one with `zester setup credentials`"
	case errors.Is(err, ErrStorageUnavailable):
		return "check that the output directory exists and is writable"
	case errors.Is(err, ErrRetriesExhausted):
		return "the service kept failing; try again later"
	case errors.Is(err, ErrMissingConfig):
		return "run `zester setup config` to create config.toml"
	default:
		return ""
	}
}
