package analyzer

import (
	"context"
	"errors"
	"net"

	"github.com/raine/drip-check/internal/api"
)

const (
	msgNoConnection   = "No internet connection. Please check your network."
	msgTimedOut       = "Request timed out. Please try again."
	msgRateLimited    = "Too many requests. Please wait a moment and try again."
	msgImages         = "Could not process the photos. Please try different images."
	msgConfiguration  = "The analysis service is not configured correctly."
	msgCanceled       = "Analysis was cancelled."
	msgInProgress     = "An analysis is already running."
	msgNothingToRetry = "There is no analysis to retry."
	msgAnalysisFailed = "Analysis failed. Please try again."
)

// UserMessage turns an analysis error into text fit to show the user. It
// never returns an empty string for a non-nil error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var badRequest *api.BadRequestError
	if errors.As(err, &badRequest) && badRequest.Message != "" {
		return badRequest.Message
	}
	var serverErr *api.ServerError
	if errors.As(err, &serverErr) && serverErr.Message != "" {
		return serverErr.Message
	}

	switch {
	case errors.Is(err, ErrAnalysisInProgress):
		return msgInProgress
	case errors.Is(err, ErrNothingToRetry):
		return msgNothingToRetry
	case errors.Is(err, context.Canceled):
		return msgCanceled
	case errors.Is(err, api.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, api.ErrConfiguration):
		return msgConfiguration
	case errors.Is(err, api.ErrImageProcessingFailed):
		return msgImages
	case isConnectionError(err):
		return msgNoConnection
	case errors.Is(err, api.ErrAnalysisTimeout), errors.Is(err, context.DeadlineExceeded):
		return msgTimedOut
	}
	return msgAnalysisFailed
}

func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
