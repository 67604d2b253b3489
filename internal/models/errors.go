package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrInvalidID        = errors.New("invalid ID format")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrDataUnavailable  = errors.New("historical data unavailable")
	ErrSweepInProgress  = errors.New("edge sweep already in progress")
	ErrNoDefaultModel   = errors.New("no default model for prop type")
)

// Validation error codes surfaced to callers of the ticket service.
const (
	CodeInvalidStake       = "INVALID_STAKE"
	CodeNoEdges            = "NO_EDGES"
	CodeTooFewLegs         = "TOO_FEW_LEGS"
	CodeTooManyLegs        = "TOO_MANY_LEGS"
	CodeEdgesNotFound      = "EDGES_NOT_FOUND"
	CodeInactiveEdges      = "INACTIVE_EDGES"
	CodeCorrelationTooHigh = "CORRELATION_TOO_HIGH"
	CodeTicketNotFound     = "TICKET_NOT_FOUND"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeEdgeStateChanged   = "EDGE_STATE_CHANGED"
	CodeValuationNotFound  = "VALUATION_NOT_FOUND"
)

// ValidationError is a business-rule violation with a machine-readable code.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a validation error with the given code
func NewValidationError(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsValidationCode reports whether err is a ValidationError carrying code.
func IsValidationCode(err error, code string) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// RiskViolationError is raised when pre-submission risk checks produce a
// critical finding. It is distinct from ValidationError so callers can branch
// on risk hard-stops separately from ordinary constraint violations.
type RiskViolationError struct {
	Findings []RiskFinding
}

func (e *RiskViolationError) Error() string {
	if len(e.Findings) == 0 {
		return "critical risk violation"
	}
	msg := e.Findings[0].Message
	if len(e.Findings) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e.Findings)-1)
	}
	return fmt.Sprintf("critical risk violation: %s", msg)
}

// RiskLevel classifies the severity of a risk finding
type RiskLevel string

const (
	RiskLevelInfo     RiskLevel = "INFO"
	RiskLevelWarning  RiskLevel = "WARNING"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// RiskFinding is a single result from the pre-submission risk checks
type RiskFinding struct {
	Level   RiskLevel `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}
