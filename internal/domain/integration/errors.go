package integration

import (
	"errors"
	"fmt"
	"net/http"
)

// ---------------------------------------------------------------------------
// Storefront Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformNotConfigured    = errors.New("integration: platform not configured")
	ErrPlatformUnavailable      = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed    = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse  = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed       = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited      = errors.New("integration: platform rate limited")
	ErrPlatformInvalidSignature = errors.New("integration: invalid platform signature")

	// Order sync errors
	ErrOrderSyncNoLineItems = errors.New("integration: no line items could be mapped to storefront products")
	ErrOrderSyncSkipped     = errors.New("integration: order originated on the storefront")
)

// RequestError is a non-2xx answer from the storefront
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	// Code is the storefront error code, e.g. woocommerce_rest_product_invalid_id
	Code    string
	Message string
}

// Error implements the error interface
func (e *RequestError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap maps the status code onto the platform sentinels
func (e *RequestError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrPlatformAuthFailed
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrPlatformRateLimited
	case e.StatusCode >= 500:
		return ErrPlatformUnavailable
	default:
		return ErrPlatformRequestFailed
	}
}

// IsNotConfigured reports whether err is caused by missing storefront credentials
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrPlatformNotConfigured)
}

// IsExternalServiceError reports whether err came from the storefront or a provider
func IsExternalServiceError(err error) bool {
	return errors.Is(err, ErrPlatformUnavailable) ||
		errors.Is(err, ErrPlatformRequestFailed) ||
		errors.Is(err, ErrPlatformInvalidResponse) ||
		errors.Is(err, ErrPlatformAuthFailed) ||
		errors.Is(err, ErrPlatformRateLimited)
}

// IsRetryable reports whether a later attempt may succeed without changing the input
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPlatformNotConfigured) ||
		errors.Is(err, ErrPlatformUnavailable) ||
		errors.Is(err, ErrPlatformRateLimited)
}

// IsRemoteNotFound reports whether the storefront answered 404
func IsRemoteNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
