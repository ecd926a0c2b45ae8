// Package errors provides the standardized error taxonomy for the transfer
// domain. Every component failure is classified here so the orchestrator can
// tell the caller whether funds moved and whether a retry is safe.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes a transfer error by its retry semantics.
type Kind string

const (
	// KindValidation marks bad input; never retried, fix and resubmit.
	KindValidation Kind = "validation"
	// KindSigningRejected marks a signer refusal; terminal for the attempt.
	KindSigningRejected Kind = "signing_rejected"
	// KindSubmission marks an RPC/broadcast failure; not retried
	// automatically because resubmission is asset-affecting.
	KindSubmission Kind = "submission"
	// KindSimulation marks a pre-flight failure; nothing was broadcast,
	// safe to retry.
	KindSimulation Kind = "simulation"
	// KindLogicalRejection marks a non-zero result code from an included
	// transaction; terminal, never silently retried.
	KindLogicalRejection Kind = "logical_rejection"
	// KindPollTimeout marks an attestation or balance wait exceeding its
	// budget; the caller may re-poll with the retained receipt.
	KindPollTimeout Kind = "poll_timeout"
	// KindCancelled marks a caller-initiated abort of a poll.
	KindCancelled Kind = "cancelled"
	// KindAllowance marks an approval failure on the EVM source domain.
	KindAllowance Kind = "allowance"
	// KindInsufficientBalance marks a forward skipped because the sendable
	// amount after the fee reserve would be non-positive.
	KindInsufficientBalance Kind = "insufficient_balance"
)

// Sentinels for errors.Is matching.
var (
	ErrValidation          = errors.New("invalid input")
	ErrSigningRejected     = errors.New("signing rejected")
	ErrSubmission          = errors.New("submission failed")
	ErrSimulation          = errors.New("simulation failed")
	ErrLogicalRejection    = errors.New("transaction rejected by chain")
	ErrPollTimeout         = errors.New("poll timeout")
	ErrCancelled           = errors.New("cancelled")
	ErrAllowance           = errors.New("allowance operation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

var sentinelByKind = map[Kind]error{
	KindValidation:          ErrValidation,
	KindSigningRejected:     ErrSigningRejected,
	KindSubmission:          ErrSubmission,
	KindSimulation:          ErrSimulation,
	KindLogicalRejection:    ErrLogicalRejection,
	KindPollTimeout:         ErrPollTimeout,
	KindCancelled:           ErrCancelled,
	KindAllowance:           ErrAllowance,
	KindInsufficientBalance: ErrInsufficientBalance,
}

// TransferError is a classified error with enough context for the caller to
// decide what to do next. Recoverable means value already left the source
// domain but the destination credit is still pending, so the retained burn
// receipt can drive a manual retry; non-recoverable either means nothing
// happened (safe to resubmit) or that investigation is required.
type TransferError struct {
	Kind        Kind
	Err         error
	Message     string
	Recoverable bool
	Details     map[string]interface{}
}

func (e *TransferError) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is matches both the wrapped error chain and the kind sentinel.
func (e *TransferError) Is(target error) bool {
	if s, ok := sentinelByKind[e.Kind]; ok && target == s {
		return true
	}
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithDetails attaches structured context to the error.
func (e *TransferError) WithDetails(details map[string]interface{}) *TransferError {
	e.Details = details
	return e
}

// New creates a classified transfer error wrapping cause.
func New(kind Kind, message string, cause error) *TransferError {
	return &TransferError{Kind: kind, Message: message, Err: cause}
}

// NewRecoverable creates a classified error for the "funds burned, credit
// pending" class of failures.
func NewRecoverable(kind Kind, message string, cause error) *TransferError {
	return &TransferError{Kind: kind, Message: message, Err: cause, Recoverable: true}
}

// KindOf extracts the Kind from an error chain, or "" if unclassified.
func KindOf(err error) Kind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsRecoverable reports whether the error chain carries a recoverable
// transfer error.
func IsRecoverable(err error) bool {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Recoverable
	}
	return false
}
