package providers

import (
	"fmt"
	"net/http"
	"strings"

	"docrag/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorQuota, ErrorRate, ErrorTransient:
		return true
	default:
		return false
	}
}

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "eof"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// httpStatusError maps a backend HTTP status to a ProviderError with the
// right retryability: 429 and 5xx can be retried, 4xx cannot.
func httpStatusError(provider string, status int, body []byte) error {
	retryable := status == http.StatusTooManyRequests || status >= 500
	return &util.ProviderError{
		Provider:  provider,
		Retryable: retryable,
		Err:       fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body))),
	}
}

// transportError covers dial/timeout failures before any HTTP status exists;
// these are always worth retrying.
func transportError(provider string, err error) error {
	return &util.ProviderError{Provider: provider, Retryable: true, Err: err}
}
