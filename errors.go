package tss

import (
	"fmt"
)

// ErrorCategory groups engine errors by the subsystem that raised them.
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryThreshold     ErrorCategory = "threshold"
	ErrorCategoryShare         ErrorCategory = "share"
	ErrorCategoryCryptographic ErrorCategory = "cryptographic"
	ErrorCategoryKeyGeneration ErrorCategory = "key_generation"
	ErrorCategorySigning       ErrorCategory = "signing"
	ErrorCategoryTransaction   ErrorCategory = "transaction"
	ErrorCategoryCeremony      ErrorCategory = "ceremony"
	ErrorCategoryRandomness    ErrorCategory = "randomness"
	ErrorCategoryStorage       ErrorCategory = "storage"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityMedium   ErrorSeverity = "medium"   // Important, may affect functionality
	ErrorSeverityHigh     ErrorSeverity = "high"     // Critical, operation must stop
	ErrorSeverityCritical ErrorSeverity = "critical" // System-level failure
)

// EngineError is the structured error type used across the engine.
// Every cryptographic precondition violation aborts the enclosing operation
// with one of these; nothing is retried internally and nothing is downgraded
// to a best-guess result.
type EngineError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Details  string        `json:"details,omitempty"`
	Cause    error         `json:"-"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches on category and code so that copies produced by WithCause and
// WithDetails still satisfy errors.Is against the predeclared values.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause returns a copy of the error with the underlying cause attached.
func (e *EngineError) WithCause(cause error) *EngineError {
	dup := *e
	dup.Cause = cause
	return &dup
}

// WithDetails returns a copy of the error with formatted detail text.
func (e *EngineError) WithDetails(format string, args ...any) *EngineError {
	dup := *e
	dup.Details = fmt.Sprintf(format, args...)
	return &dup
}

// NewEngineError creates a new engine error value.
func NewEngineError(category ErrorCategory, severity ErrorSeverity, code, message string) *EngineError {
	return &EngineError{
		Category: category,
		Severity: severity,
		Code:     code,
		Message:  message,
	}
}

// Threshold and share-set errors
var (
	ErrInvalidThreshold = NewEngineError(
		ErrorCategoryThreshold, ErrorSeverityHigh, "INVALID_THRESHOLD",
		"threshold value is invalid")

	ErrInvalidShareCount = NewEngineError(
		ErrorCategoryThreshold, ErrorSeverityHigh, "INVALID_SHARE_COUNT",
		"total share count is invalid")

	ErrInsufficientShares = NewEngineError(
		ErrorCategoryShare, ErrorSeverityHigh, "INSUFFICIENT_SHARES",
		"not enough shares to meet the threshold")

	ErrInvalidShareData = NewEngineError(
		ErrorCategoryShare, ErrorSeverityHigh, "INVALID_SHARE_DATA",
		"shares disagree on public key, threshold or curve")

	ErrDuplicateShareIndex = NewEngineError(
		ErrorCategoryShare, ErrorSeverityHigh, "DUPLICATE_SHARE_INDEX",
		"duplicate share index in share set")

	ErrShareReconstructionFailed = NewEngineError(
		ErrorCategoryShare, ErrorSeverityCritical, "SHARE_RECONSTRUCTION_FAILED",
		"reconstructed secret does not re-derive the recorded public key")
)

// Cryptographic errors
var (
	ErrCryptographic = NewEngineError(
		ErrorCategoryCryptographic, ErrorSeverityHigh, "CRYPTOGRAPHIC_OPERATION_FAILED",
		"cryptographic operation failed")

	ErrInvalidPrivateKey = NewEngineError(
		ErrorCategoryCryptographic, ErrorSeverityHigh, "INVALID_PRIVATE_KEY",
		"private key scalar is zero or not below the curve order")

	ErrRandomnessUnavailable = NewEngineError(
		ErrorCategoryRandomness, ErrorSeverityCritical, "RANDOMNESS_UNAVAILABLE",
		"secure randomness source failed")
)

// Signing and transaction errors
var (
	ErrInvalidSignature = NewEngineError(
		ErrorCategorySigning, ErrorSeverityHigh, "INVALID_SIGNATURE",
		"signature is invalid or malformed")

	ErrInvalidTransaction = NewEngineError(
		ErrorCategoryTransaction, ErrorSeverityHigh, "INVALID_TRANSACTION",
		"transaction is invalid or cannot be signed")

	ErrUnsupportedSigningCurve = NewEngineError(
		ErrorCategorySigning, ErrorSeverityHigh, "UNSUPPORTED_SIGNING_CURVE",
		"transaction signing requires a secp256k1 key")
)

// Ceremony errors
var (
	ErrCeremonyAborted = NewEngineError(
		ErrorCategoryCeremony, ErrorSeverityHigh, "CEREMONY_ABORTED",
		"signing ceremony aborted due to invalid or missing participant input")

	ErrCeremonyPhaseOrder = NewEngineError(
		ErrorCategoryCeremony, ErrorSeverityMedium, "CEREMONY_PHASE_ORDER",
		"ceremony phase invoked out of order")
)

// Storage errors
var (
	ErrStorageKeyNotFound = NewEngineError(
		ErrorCategoryStorage, ErrorSeverityMedium, "STORAGE_KEY_NOT_FOUND",
		"no value stored under the requested key")
)
