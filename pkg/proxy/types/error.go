package types

import "net/http"

// ErrorResponse is the JSON body of every error the server returns.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error. See the ErrorType constants.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeNotFound indicates a resource was not found (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeMethodNotAllowed indicates an unsupported method (405).
	ErrorTypeMethodNotAllowed = "method_not_allowed"

	// ErrorTypeRateLimitExceeded indicates the request was not admitted (429).
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates the upstream failed (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeGatewayTimeout indicates the upstream timed out (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error code constants for common error scenarios.
const (
	// CodeMissingIdentity indicates no identity could be derived from the request.
	CodeMissingIdentity = "missing_identity"

	// CodeUnknownLimiter indicates the named limiter is not configured.
	CodeUnknownLimiter = "unknown_limiter"

	// CodeRejected indicates the limiter rejected the request.
	CodeRejected = "rejected"

	// CodeUpstreamError indicates the upstream could not be reached.
	CodeUpstreamError = "upstream_error"

	// CodeUpstreamTimeout indicates the upstream request timed out.
	CodeUpstreamTimeout = "upstream_timeout"

	// CodeInternalError indicates an internal server error.
	CodeInternalError = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewMissingIdentityError creates an error response for requests without an identity (400).
func NewMissingIdentityError(message, param string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, CodeMissingIdentity)
}

// NewUnknownLimiterError creates an error response for unknown limiter names (404).
func NewUnknownLimiterError(name string) *ErrorResponse {
	return NewErrorResponse("unknown limiter: "+name, ErrorTypeNotFound, "name", CodeUnknownLimiter)
}

// NewRateLimitError creates an error response for rejected requests (429).
func NewRateLimitError(limiter string) *ErrorResponse {
	return NewErrorResponse("request rejected by limiter "+limiter, ErrorTypeRateLimitExceeded, "", CodeRejected)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError creates an error response for upstream failures (502).
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeUpstreamError)
}

// NewGatewayTimeoutError creates an error response for upstream timeouts (504).
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, "", CodeUpstreamTimeout)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
