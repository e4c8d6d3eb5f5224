package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyPassesThroughClassified(t *testing.T) {
	orig := New(ClassInvalidInput, "missing recipient").WithUserMessage("No recipient address for this conversation")
	wrapped := fmt.Errorf("send: %w", orig)

	got := Classify(wrapped)
	if got.Class != ClassInvalidInput {
		t.Errorf("class = %s, want %s", got.Class, ClassInvalidInput)
	}
	if UserMessage(wrapped) != "No recipient address for this conversation" {
		t.Errorf("user message = %q", UserMessage(wrapped))
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := Classify(context.DeadlineExceeded).Class; got != ClassTimeout {
		t.Errorf("deadline: got %s, want %s", got, ClassTimeout)
	}
	if got := Classify(context.Canceled).Class; got != ClassConnectivity {
		t.Errorf("canceled: got %s, want %s", got, ClassConnectivity)
	}
}

func TestClassifyGRPCCodes(t *testing.T) {
	cases := []struct {
		code codes.Code
		want Class
	}{
		{codes.Unauthenticated, ClassUnauthorized},
		{codes.PermissionDenied, ClassForbidden},
		{codes.NotFound, ClassNotFound},
		{codes.AlreadyExists, ClassConflict},
		{codes.InvalidArgument, ClassInvalidInput},
		{codes.ResourceExhausted, ClassRateLimited},
		{codes.Unavailable, ClassUnavailable},
		{codes.Internal, ClassServer},
	}
	for _, tc := range cases {
		err := status.Error(tc.code, "boom")
		if got := Classify(err).Class; got != tc.want {
			t.Errorf("code %s: got %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestFromHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want Class
	}{
		{http.StatusUnauthorized, ClassUnauthorized},
		{http.StatusForbidden, ClassForbidden},
		{http.StatusNotFound, ClassNotFound},
		{http.StatusConflict, ClassConflict},
		{http.StatusTooManyRequests, ClassRateLimited},
		{http.StatusBadRequest, ClassInvalidInput},
		{http.StatusInternalServerError, ClassServer},
		{http.StatusServiceUnavailable, ClassUnavailable},
	}
	for _, tc := range cases {
		if got := FromHTTPStatus(tc.code, "").Class; got != tc.want {
			t.Errorf("status %d: got %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestUserMessageNeverEmptyForKnownError(t *testing.T) {
	for _, err := range []error{
		errors.New("random failure"),
		status.Error(codes.Internal, "db exploded"),
		FromHTTPStatus(http.StatusBadGateway, "upstream dead"),
	} {
		if UserMessage(err) == "" {
			t.Errorf("empty user message for %v", err)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(status.Error(codes.Unavailable, "down")) {
		t.Error("unavailable should be retryable")
	}
	if Retryable(New(ClassInvalidInput, "bad")) {
		t.Error("invalid input should not be retryable")
	}
}
