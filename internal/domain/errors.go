package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	ErrRateLimited        = errors.New("rate limited")
	ErrServerBusy         = errors.New("server busy")
	ErrInvalidCode        = errors.New("invalid code")
	ErrExpiredCode        = errors.New("expired code")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrChannelUnavailable = errors.New("channel unavailable")
)

// RetryAfterError is returned when a send is throttled. Reason is either
// ErrRateLimited or ErrServerBusy; callers treat both the same way.
type RetryAfterError struct {
	Reason            error
	Detail            string
	RetryAfterSeconds int64
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%s: %s (retry after %ds)", e.Reason, e.Detail, e.RetryAfterSeconds)
}

func (e *RetryAfterError) Unwrap() error { return e.Reason }

// TransitionError reports a rejected issue status change.
type TransitionError struct {
	From IssueStatus
	To   IssueStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
