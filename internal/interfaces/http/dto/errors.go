package dto

import "net/http"

// Transport-level error codes
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
// Domain codes pass through to clients unchanged, so callers can match
// on WALLET_CONFLICT or ORDER_STATE_RACE and retry.
var ErrorCodeHTTPStatus = map[string]int{
	// Transport errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,

	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,

	// Not found
	"NOT_FOUND":        http.StatusNotFound,
	"WALLET_NOT_FOUND": http.StatusNotFound,

	// Malformed input
	"INVALID_INPUT":              http.StatusBadRequest,
	"INVALID_AMOUNT":             http.StatusBadRequest,
	"INVALID_USER_ID":            http.StatusBadRequest,
	"INVALID_REFERENCE":          http.StatusBadRequest,
	"INVALID_CONVERSION_RATE":    http.StatusBadRequest,
	"INVALID_QUANTITY":           http.StatusBadRequest,
	"INVALID_WITHDRAWAL_ADDRESS": http.StatusBadRequest,

	// Concurrency conflicts, safe to retry
	"ALREADY_EXISTS":        http.StatusConflict,
	"CONCURRENCY_CONFLICT":  http.StatusConflict,
	"OPTIMISTIC_LOCK_ERROR": http.StatusConflict,
	"WALLET_CONFLICT":       http.StatusConflict,
	"ORDER_STATE_RACE":      http.StatusConflict,

	// Business rule violations
	"INSUFFICIENT_BALANCE":            http.StatusUnprocessableEntity,
	"INSUFFICIENT_LOCKED_BALANCE":     http.StatusUnprocessableEntity,
	"INSUFFICIENT_AD_LIQUIDITY":       http.StatusUnprocessableEntity,
	"INVALID_STATE":                   http.StatusUnprocessableEntity,
	"INVALID_ORDER_STATUS":            http.StatusUnprocessableEntity,
	"INVALID_WITHDRAWAL_STATE":        http.StatusUnprocessableEntity,
	"ORDER_EXPIRED":                   http.StatusUnprocessableEntity,
	"AD_NOT_AVAILABLE":                http.StatusUnprocessableEntity,
	"SELLER_ALREADY_HAS_ACTIVE_ORDER": http.StatusUnprocessableEntity,
	"DUPLICATE_WITHDRAWAL_REQUEST":    http.StatusConflict,
	"MERCHANT_ALREADY_ACTIVE":         http.StatusUnprocessableEntity,
	"MERCHANT_DEPOSIT_REQUIRED":       http.StatusUnprocessableEntity,
	"MERCHANT_REQUIRED":               http.StatusUnprocessableEntity,

	// Authorization
	"FORBIDDEN": http.StatusForbidden,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
