package registry

import (
	"errors"
)

// ErrConflictingSettings is returned by Settings.Resolve when both a custom
// registry and on-demand collectors are supplied.
var ErrConflictingSettings = errors.New("on-demand collectors can only be registered against the default registry")

// ScrapeError reports that a collection could not complete. Message is what
// a scraper gets to see and may be empty.
type ScrapeError struct {
	// Message is the human-readable diagnostic returned to the client
	Message string
	// Err is the underlying cause, if any
	Err error
}

func (e *ScrapeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "scrape failed"
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsScrapeError reports whether err is or wraps a *ScrapeError.
func IsScrapeError(err error) bool {
	var se *ScrapeError
	return errors.As(err, &se)
}

// asScrapeError returns err as a *ScrapeError, preserving one that is already
// in the chain and otherwise using err's text as the message.
func asScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return &ScrapeError{Message: err.Error(), Err: err}
}
