package expecter

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed Session.
	ErrClosed = errors.New("expecter: session closed")

	// ErrNoProcess is returned by process operations on a Session created
	// with New.
	ErrNoProcess = errors.New("expecter: session has no child process")

	// ErrTimeout matches every *TimeoutError with errors.Is.
	ErrTimeout = errors.New("expecter: timeout")

	// ErrMismatch matches every *MismatchError with errors.Is.
	ErrMismatch = errors.New("expecter: mismatch")

	// ErrAssertion matches every *AssertionError with errors.Is.
	ErrAssertion = errors.New("expecter: assertion failed")
)

const maxQuotedReceived = 512

// TimeoutError reports an expectation that was not satisfied in time.
type TimeoutError struct {
	Op       string
	Expected string
	Received string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("expecter: %s: timed out after %v waiting for %s; received %s",
		e.Op, e.Timeout, e.Expected, quoteTail(e.Received))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// MismatchError reports that the console output ended, because the child
// exited or the stream was closed, without the expected text appearing.
type MismatchError struct {
	Op       string
	Expected string
	Received string
	Cause    error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expecter: %s: output ended (%v) while waiting for %s; received %s",
		e.Op, e.Cause, e.Expected, quoteTail(e.Received))
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

func (e *MismatchError) Unwrap() error {
	return e.Cause
}

// AssertionError reports a post-match check that failed, such as a captured
// value outside its allowed range.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return "expecter: assertion failed: " + e.Message
}

func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertion
}

// quoteTail quotes s, keeping only its last maxQuotedReceived bytes.
func quoteTail(s string) string {
	if s == "" {
		return "nothing"
	}
	if len(s) > maxQuotedReceived {
		return fmt.Sprintf("...%q", s[len(s)-maxQuotedReceived:])
	}
	return fmt.Sprintf("%q", s)
}
