package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the manager answers with a non-200 status.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s", e.URL, e.Status)
}

// IsUnauthorized reports whether err is a 401 or 403 response. The manager answers 403 when
// no Authorization header is present and 401 when the supplied one is invalid; both mean the
// credentials were not accepted.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
}
