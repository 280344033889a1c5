package platformclient

import (
	"errors"
	"fmt"
)

// ErrAllowListUnset is returned by NewFromEnv when the named variable is
// not present in the environment.
var ErrAllowListUnset = errors.New("header allow-list environment variable is not set")

// ErrAllowListEmpty is returned by NewFromEnv when the variable is set but
// lists no header names.
var ErrAllowListEmpty = errors.New("header allow-list is empty")

// ErrInvalidID is returned by the by-id verbs for an empty or dot-segment id.
var ErrInvalidID = errors.New("invalid resource id")

// StatusError reports a peer response outside [200,300).
type StatusError struct {
	Verb       string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform client %s %s responded with status code %d", e.Verb, e.URL, e.StatusCode)
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
