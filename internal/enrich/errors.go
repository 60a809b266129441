package enrich

import (
	"context"
	"errors"
	"fmt"
)

type Op string

const (
	OpOCR      Op = "ocr"
	OpAnalysis Op = "analysis"
)

type Kind string

const (
	// KindTimeout means the provider did not answer within the attempt timeout.
	KindTimeout Kind = "timeout"
	// KindRejected covers auth, quota and other 4xx refusals.
	KindRejected Kind = "rejected"
	// KindUnavailable covers 5xx, throttling and network failures.
	KindUnavailable Kind = "unavailable"
	// KindMalformed means the provider answered with something we cannot read.
	KindMalformed   Kind = "malformed"
	KindUnsupported Kind = "unsupported"
	KindNoText      Kind = "no_text"
	KindInput       Kind = "input"
	KindCanceled    Kind = "canceled"
)

// Error is a classified enrichment failure. Op and Kind together are what is
// recorded on the audit log.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnavailable
}

// Detail is the short op:kind form stored in audit details.
func (e *Error) Detail() string {
	return string(e.Op) + ":" + string(e.Kind)
}

func newError(op Op, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// AsError classifies any error raised during op. Already classified errors
// pass through; context errors become timeout or canceled; everything else is
// treated as the provider being unavailable.
func AsError(op Op, err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(op, KindTimeout, err)
	case errors.Is(err, context.Canceled):
		return newError(op, KindCanceled, err)
	}

	return newError(op, KindUnavailable, err)
}

// KindOf reports the classification of err, or "" when err is not an
// enrichment error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
