package providers

import (
	"errors"
	"net/http"
	"testing"

	"docrag/internal/util"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota for this key": ErrorQuota,
		"429 too many requests":           ErrorRate,
		"rate limit reached":              ErrorRate,
		"request timeout":                 ErrorTransient,
		"service temporarily unavailable": ErrorTransient,
		"prompt context too long":         ErrorContext,
		"invalid api key":                 ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
	if ClassifyError(nil) != "" {
		t.Fatal("nil error should classify to empty type")
	}
}

func TestErrorTypeRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorQuota, ErrorRate, ErrorTransient}
	for _, et := range retryable {
		if !et.Retryable() {
			t.Fatalf("%s should be retryable", et)
		}
	}
	if ErrorPermanent.Retryable() || ErrorContext.Retryable() {
		t.Fatal("permanent and context errors must not be retryable")
	}
}

func TestHTTPStatusErrorRetryability(t *testing.T) {
	cases := map[int]bool{
		http.StatusUnauthorized:        false,
		http.StatusForbidden:           false,
		http.StatusNotFound:            false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
	}
	for status, want := range cases {
		err := httpStatusError("openai", status, []byte("body"))
		if got := util.IsRetryableProvider(err); got != want {
			t.Fatalf("status %d: retryable=%v want %v", status, got, want)
		}
	}
}
