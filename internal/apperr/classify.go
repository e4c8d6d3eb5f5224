package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classify maps an opaque error onto a classified *Error. Errors that
// already carry a class pass through unchanged, so explicit
// classification at the failure site always wins.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ClassTimeout, "deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ClassConnectivity, "request canceled")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(err, ClassTimeout, "network timeout")
		}
		return Wrap(err, ClassConnectivity, "network failure")
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return Wrap(err, ClassConnectivity, "request failed")
	}

	// Transports backed by gRPC report *status.Status errors.
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		return Wrap(err, classFromGRPC(st.Code()), st.Message())
	}

	return Wrap(err, ClassUnknown, "unclassified failure")
}

func classFromGRPC(code codes.Code) Class {
	switch code {
	case codes.DeadlineExceeded:
		return ClassTimeout
	case codes.Unauthenticated:
		return ClassUnauthorized
	case codes.PermissionDenied:
		return ClassForbidden
	case codes.NotFound:
		return ClassNotFound
	case codes.Aborted, codes.AlreadyExists, codes.FailedPrecondition:
		return ClassConflict
	case codes.InvalidArgument, codes.OutOfRange:
		return ClassInvalidInput
	case codes.ResourceExhausted:
		return ClassRateLimited
	case codes.Unavailable:
		return ClassUnavailable
	case codes.Internal, codes.DataLoss:
		return ClassServer
	case codes.Canceled:
		return ClassConnectivity
	default:
		return ClassUnknown
	}
}

// FromHTTPStatus classifies an HTTP response status. detail is kept as
// the technical message, never shown directly.
func FromHTTPStatus(code int, detail string) *Error {
	if detail == "" {
		detail = http.StatusText(code)
	}
	return New(classFromHTTP(code), detail)
}

func classFromHTTP(code int) Class {
	switch {
	case code == http.StatusUnauthorized:
		return ClassUnauthorized
	case code == http.StatusForbidden:
		return ClassForbidden
	case code == http.StatusNotFound:
		return ClassNotFound
	case code == http.StatusConflict:
		return ClassConflict
	case code == http.StatusRequestTimeout:
		return ClassTimeout
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway || code == http.StatusGatewayTimeout:
		return ClassUnavailable
	case code >= 500:
		return ClassServer
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ClassInvalidInput
	case code >= 400:
		return ClassInvalidInput
	default:
		return ClassUnknown
	}
}
