package webstore

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnexpectedURL is returned when the resolved download URL does not point to a package file.
var ErrUnexpectedURL = errors.New("unexpected download URL")

// HTTPError reports a non-success response from the update endpoint.
type HTTPError struct {
	// StatusCode is the numeric HTTP status.
	StatusCode int
	// Reason is the reason phrase, e.g. "Not Found".
	Reason string
	// URL is the request URL that produced the response.
	URL string
}

// Error returns the reason phrase.
func (e *HTTPError) Error() string {
	return e.Reason
}

// newHTTPError builds an HTTPError from a response.
func newHTTPError(response *http.Response) *HTTPError {
	reason := strings.TrimSpace(strings.TrimPrefix(response.Status, strconv.Itoa(response.StatusCode)))
	if reason == "" {
		reason = http.StatusText(response.StatusCode)
	}

	if reason == "" {
		reason = fmt.Sprintf("HTTP status %d", response.StatusCode)
	}

	return &HTTPError{
		StatusCode: response.StatusCode,
		Reason:     reason,
		URL:        response.Request.URL.String(),
	}
}
