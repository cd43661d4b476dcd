// Package request provides to define immutable HTTP requests, see NewHTTPRequest function.
//
// Requests are sent using the Sender interface.
// The client.Client is a default implementation of the request.Sender
// interface based on the standard net/http package.
//
// Every sent request results in an Outcome: the response body text and a success flag,
// which is true only for HTTP status 200. Any other status code is data, not an error.
// Failures are reported by one of four sentinel errors, see ErrInvalidURL,
// ErrResponseFailed, ErrDecodingDataFailed and ErrEncodingDataFailed.
//
// RunGroup, WaitGroup, ParallelRequests are helpers for concurrent requests.
package request
