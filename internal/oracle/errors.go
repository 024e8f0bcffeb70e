package oracle

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned when an oracle answers 200 with a body that cannot be used.
var ErrMalformed = errors.New("oracle: malformed response")

// HTTPError represents a non-200 HTTP response from an oracle.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oracle: HTTP %d: %s", e.StatusCode, e.Body)
}
