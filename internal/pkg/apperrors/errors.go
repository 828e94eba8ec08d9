package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// Authorization
	ErrUnauthorized ErrorType = "UNAUTHORIZED"

	// Input validation
	ErrInvalidAmount    ErrorType = "INVALID_AMOUNT"
	ErrNoFunds          ErrorType = "NO_FUNDS"
	ErrMultipleDenoms   ErrorType = "MULTIPLE_DENOMS"
	ErrUnsupportedDenom ErrorType = "UNSUPPORTED_DENOM"
	ErrInvalidDenom     ErrorType = "INVALID_DENOM"
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"

	// Accounting
	ErrInsufficientFunds ErrorType = "INSUFFICIENT_FUNDS"

	// Allocation policy
	ErrExcessiveAllocation ErrorType = "EXCESSIVE_ALLOCATION"
	ErrInvalidAllocations  ErrorType = "INVALID_ALLOCATIONS"

	// Registry
	ErrProtocolNotFound      ErrorType = "PROTOCOL_NOT_FOUND"
	ErrProtocolAlreadyExists ErrorType = "PROTOCOL_ALREADY_EXISTS"

	// External boundary
	ErrConversion ErrorType = "CONVERSION_ERROR"
	ErrUpstream   ErrorType = "UPSTREAM_ERROR"

	// Reserved for a local slippage re-check; the venue enforces the
	// minimum-receive floor today.
	ErrExcessiveSlippage ErrorType = "EXCESSIVE_SLIPPAGE"
	// Raised by the read-only gate while the vault is halted.
	ErrEmergencyModeActive ErrorType = "EMERGENCY_MODE_ACTIVE"

	// Storage / serialization
	ErrStore    ErrorType = "STORE_ERROR"
	ErrInternal ErrorType = "INTERNAL_ERROR"
	ErrNotFound ErrorType = "NOT_FOUND"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err is an AppError of the given type.
func Is(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrInvalidAmount, ErrNoFunds, ErrMultipleDenoms, ErrUnsupportedDenom,
		ErrInvalidDenom, ErrInvalidRequest, ErrInsufficientFunds,
		ErrExcessiveAllocation, ErrInvalidAllocations, ErrExcessiveSlippage:
		return http.StatusBadRequest
	case ErrProtocolNotFound, ErrNotFound:
		return http.StatusNotFound
	case ErrProtocolAlreadyExists:
		return http.StatusConflict
	case ErrEmergencyModeActive:
		return http.StatusServiceUnavailable
	case ErrConversion, ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrUnauthorized:
		return "Use the configured admin or operator address for privileged calls."
	case ErrUnsupportedDenom:
		return "Check the accepted denom list via GET /v1/config."
	case ErrInsufficientFunds:
		return "Check the available balance via GET /v1/users/:address."
	case ErrInvalidAllocations:
		return "Target allocations must sum to exactly 1."
	case ErrExcessiveAllocation:
		return "Lower the per-protocol allocation below the configured cap."
	case ErrConversion:
		return "The swap venue rejected the quote request; retry later."
	default:
		return ""
	}
}
