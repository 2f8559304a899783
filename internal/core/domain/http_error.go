package domain

import "fmt"

// HTTPError is returned by provider clients when an HTTP call completes with
// a non-success status. It gives the classifier a typed signal instead of a
// string to pattern-match.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
	}
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}
