// Package generation defines the collaborator boundary between the pipeline
// orchestrator and the external synthesis providers. Every capability returns
// either a payload or an error classified as moderation-rejected, transient,
// or fatal; classification is the provider's contract, callers never sniff
// message text.
package generation

import (
	"errors"
	"fmt"
)

// ModerationError reports a content-policy rejection. It is the only error
// class the moderation retry policy acts on.
type ModerationError struct {
	Reason string
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("moderation rejected: %s", e.Reason)
}

// Moderationf builds a ModerationError with a formatted reason.
func Moderationf(format string, args ...any) *ModerationError {
	return &ModerationError{Reason: fmt.Sprintf(format, args...)}
}

// TransientError reports an infrastructure-level failure (network, timeout,
// 5xx). The stage fails but the job stays resumable with identical inputs.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// FatalError reports an unrecoverable input or configuration problem. Resume
// fails identically until the underlying input changes.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal failure: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError.
func Fatal(op string, err error) *FatalError {
	return &FatalError{Op: op, Err: err}
}

// IsModerationRejected reports whether err is a content-policy rejection.
func IsModerationRejected(err error) bool {
	var me *ModerationError
	return errors.As(err, &me)
}

// IsTransient reports whether err is an infrastructure-level failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is unrecoverable.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
