package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/config-collector/pkg/throttle"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassThrottled represents rate-limit rejections (429 or a
	// Throttling error code in the envelope).
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a non-2xx response from the management API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	ErrorClass ErrorClass
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API %s error (status %d): %s: %s",
			e.ErrorClass, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// ErrorCode returns the code from the response envelope. It makes APIError a
// throttle.CodedError.
func (e *APIError) ErrorCode() string {
	return e.Code
}

var _ throttle.CodedError = (*APIError)(nil)

// errorEnvelope is the body the API sends with failed requests:
//
//	{"Error": {"Code": "Throttling", "Message": "Rate exceeded"}}
type errorEnvelope struct {
	Error struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Error"`
}

// newAPIError builds an APIError from a failed response body. A 429 without
// an envelope code is reported with throttle.DefaultCode.
func newAPIError(statusCode int, status string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
	}

	if statusCode == http.StatusTooManyRequests && apiErr.Code == "" {
		apiErr.Code = throttle.DefaultCode
	}

	apiErr.ErrorClass = classifyStatus(statusCode, apiErr.Code)
	return apiErr
}

// classifyStatus categorizes a failed response.
func classifyStatus(statusCode int, code string) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests, code == throttle.DefaultCode:
		return ErrorClassThrottled
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		return false
	case ErrorClassServer:
		return true
	case ErrorClassThrottled:
		// The fetch pipeline requeues throttled items itself.
		return false
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
