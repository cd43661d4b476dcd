package request

import "net/http"

// Outcome is the normalized result of one HTTP request.
type Outcome struct {
	// Body is the response body decoded as UTF-8 text.
	Body string
	// Success is true only if the HTTP status code is exactly 200.
	Success bool
	// StatusCode of the response, 0 if no response has been received.
	StatusCode int
	// Header of the response, nil if no response has been received.
	Header http.Header
}

// FailedOutcome is the outcome reported by callback style calls on any failure.
func FailedOutcome() Outcome {
	return Outcome{}
}

// IsSuccess returns true if the HTTP status code is exactly 200.
func IsSuccess(statusCode int) bool {
	return statusCode == http.StatusOK
}
