package studioerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Caller and remote-quota failures. Wrap these with fmt.Errorf("%w: ...") to add detail.
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrProviderQuotaExceeded = errors.New("provider quota exceeded")
)

// RateLimitedError is returned when the local limiter denies admission.
// No request was sent; callers should wait RetryAfterSeconds before trying again.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %ds", e.RetryAfterSeconds)
}

// ProviderError is any remote or contract failure that is not a quota condition.
type ProviderError struct {
	Message    string
	StatusCode int
	Cause      error
}

func NewProviderError(msg string, cause error) *ProviderError {
	return &ProviderError{Message: msg, Cause: cause}
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return "provider error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// TimeoutError is returned when a bounded wait expires before a terminal state.
type TimeoutError struct {
	JobID          string
	ElapsedSeconds float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: job %s not finished after %.0fs", e.JobID, e.ElapsedSeconds)
}

// JobFailedError carries the remote failure detail of a job that ended in failed.
type JobFailedError struct {
	JobID  string
	Detail string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Detail)
}

// Kind is a stable, machine-readable name for an error category.
type Kind string

const (
	KindRateLimited   Kind = "rate_limited"
	KindQuotaExceeded Kind = "provider_quota_exceeded"
	KindProvider      Kind = "provider_error"
	KindInvalid       Kind = "invalid_request"
	KindTimeout       Kind = "timeout"
	KindJobFailed     Kind = "job_failed"
	KindInternal      Kind = "internal"
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	var (
		rl *RateLimitedError
		pe *ProviderError
		te *TimeoutError
		jf *JobFailedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rl):
		return KindRateLimited
	case errors.Is(err, ErrProviderQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalid
	case errors.As(err, &te):
		return KindTimeout
	case errors.As(err, &jf):
		return KindJobFailed
	case errors.As(err, &pe):
		return KindProvider
	default:
		return KindInternal
	}
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindQuotaExceeded:
		return http.StatusServiceUnavailable
	case KindInvalid:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindJobFailed:
		return http.StatusUnprocessableEntity
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
