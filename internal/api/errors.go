package api

import (
	"errors"
	"fmt"
)

var (
	// ErrImageProcessingFailed means there were no usable images to send or
	// the service answered with a payload that could not be read.
	ErrImageProcessingFailed = errors.New("failed to process images for analysis")
	// ErrConfiguration means a valid request URL could not be formed.
	ErrConfiguration = errors.New("analysis service endpoint is not configured correctly")
	// ErrAnalysisTimeout covers transport failures and unclassified responses.
	ErrAnalysisTimeout = errors.New("analysis request timed out")
	// ErrRateLimited is returned for HTTP 429.
	ErrRateLimited = errors.New("too many requests, please try again in a moment")
	// ErrMalformedResponse is returned when a 200 response can't be decoded.
	ErrMalformedResponse = fmt.Errorf("%w: malformed analysis response", ErrImageProcessingFailed)
)

// BadRequestError is a deterministic client error (HTTP 400). It is never retried.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// ServerError is an HTTP 500 that carried an error message.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// ErrorResponse is the body the service sends with 400 and 500 responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
