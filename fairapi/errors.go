package fairapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformed marks a 2xx response whose body could not be decoded or lacks a required field.
var ErrMalformed = errors.New("malformed payload")

// Error is a non-2xx response from the API.
type Error struct {
	Op     string
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: api status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: api status %d: %s", e.Op, e.Status, e.Body)
}

func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
