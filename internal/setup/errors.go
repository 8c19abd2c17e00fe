// Package setup implements the tenant create, join and switch flows. Flows
// never touch session state directly: they call the remote store and then
// feed the result back through the tenant context's Refresh and SelectTenant.
package setup

import (
	"errors"

	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/tenant"
)

// Kind classifies a flow failure for the caller.
type Kind string

const (
	KindAuth              Kind = "auth"
	KindTenantFetch       Kind = "tenant_fetch"
	KindNameConflict      Kind = "name_conflict"
	KindInvalidInviteCode Kind = "invalid_invite_code"
	KindAlreadyMember     Kind = "already_member"
	KindGeneric           Kind = "generic"
	KindValidation        Kind = "validation"
	KindInFlight          Kind = "in_flight"
	KindSuperseded        Kind = "superseded"
)

// User-facing messages.
const (
	MsgNoUser          = "You must be logged in to perform this action"
	MsgNameTaken       = "This school name is already taken. Please choose another name."
	MsgInvalidCode     = "Invalid invite code. Please check and try again."
	MsgAlreadyMember   = "You are already a member of this school."
	MsgServerError     = "There was a problem connecting to the server. Please try again."
	MsgNameCheckFailed = "Could not verify school name availability. Please try again."
	MsgInFlight        = "This request is already being processed."
	MsgSuperseded      = "A newer name check replaced this one."
)

// Error is a normalized flow failure. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindGeneric || e.Kind == KindTenantFetch
}

// Normalize maps collaborator errors onto a Kind. It returns nil for nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return &Error{Kind: KindAuth, Message: MsgNoUser, Err: err}
	case errors.Is(err, tenant.ErrNameConflict):
		return &Error{Kind: KindNameConflict, Message: MsgNameTaken, Err: err}
	case errors.Is(err, tenant.ErrInvalidInviteCode), errors.Is(err, tenant.ErrTenantNotFound):
		return &Error{Kind: KindInvalidInviteCode, Message: MsgInvalidCode, Err: err}
	case errors.Is(err, tenant.ErrAlreadyMember):
		return &Error{Kind: KindAlreadyMember, Message: MsgAlreadyMember, Err: err}
	case errors.Is(err, ErrSuperseded):
		return &Error{Kind: KindSuperseded, Message: MsgSuperseded, Err: err}
	}
	return &Error{Kind: KindGeneric, Message: MsgServerError, Err: err}
}
