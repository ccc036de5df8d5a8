package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeCacheError         ErrorCode = "COMMON_008"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_009"

	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Specification error codes.  Caller errors; never retried.
const (
	ErrCodeInvalidSpec ErrorCode = "SPEC_001"
)

// Upstream collaborator error codes.  Transient; retried with bounded backoff
// by the quotation engine, then surfaced as ErrCodeUpstreamUnavailable.
const (
	ErrCodeEmbeddingUnavailable ErrorCode = "EMB_001"
	ErrCodeIndexUnavailable     ErrorCode = "IDX_001"
	ErrCodeStoreUnavailable     ErrorCode = "STO_001"
	ErrCodeUpstreamUnavailable  ErrorCode = "UPS_001"
)

// Aggregation error codes.  Surfaced verbatim; retrying produces no more history.
const (
	ErrCodeInsufficientData ErrorCode = "AGG_001"
)

// Similarity fallback error codes.
const (
	ErrCodeNoSimilarityAvailable ErrorCode = "SIM_001"
)

// Narrative error codes.  Always swallowed by the engine and reported as a
// missing-narrative flag, never as a request failure.
const (
	ErrCodeNarrativeFailed ErrorCode = "NAR_001"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeInvalidSpec: http.StatusBadRequest,

	ErrCodeEmbeddingUnavailable: http.StatusBadGateway,
	ErrCodeIndexUnavailable:     http.StatusBadGateway,
	ErrCodeStoreUnavailable:     http.StatusBadGateway,
	ErrCodeUpstreamUnavailable:  http.StatusBadGateway,

	ErrCodeInsufficientData:      http.StatusNotFound,
	ErrCodeNoSimilarityAvailable: http.StatusServiceUnavailable,
	ErrCodeNarrativeFailed:       http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeServiceUnavailable: "service unavailable",

	ErrCodeInvalidSpec: "invalid vessel specification",

	ErrCodeEmbeddingUnavailable: "embedding provider unavailable",
	ErrCodeIndexUnavailable:     "similarity index unavailable",
	ErrCodeStoreUnavailable:     "historical record store unavailable",
	ErrCodeUpstreamUnavailable:  "upstream service unavailable after retries",

	ErrCodeInsufficientData:      "no usable historical matches for estimate",
	ErrCodeNoSimilarityAvailable: "no similarity path available (embedding and fallback both exhausted)",
	ErrCodeNarrativeFailed:       "narrative generation failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
