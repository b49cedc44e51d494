// Package venueerrors defines the error taxonomy shared by the venue and
// strategy layers: NotFound, PermissionDenied, VenueError,
// StrategyConstructionError and FatalLoopError. The HTTP control plane maps
// these kinds to status codes. The venue registry (internal/venue/registry)
// wraps every adapter failure in a VenueError and returns it alongside an
// empty result; strategies receive that error, log it and go on with the
// rest of the tick.
package venueerrors

import "fmt"

// Kind discriminates the error taxonomy from spec section 7.
type Kind string

const (
	KindNotFound                 Kind = "not_found"
	KindPermissionDenied         Kind = "permission_denied"
	KindVenueError               Kind = "venue_error"
	KindStrategyConstruction     Kind = "strategy_construction"
	KindFatalLoop                Kind = "fatal_loop"
)

// Error is a typed error carrying a taxonomy Kind, ground on the teacher's
// client.ProviderError (internal/net/client/wrap.go), which carries a Type
// discriminator and unwraps to the underlying cause.
type Error struct {
	Kind    Kind
	Subject string // venue id, strategy id, etc.
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Subject)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a NotFound error for an unknown venue or strategy id.
func NotFound(subject string) *Error {
	return &Error{Kind: KindNotFound, Subject: subject}
}

// PermissionDenied builds a PermissionDenied error.
func PermissionDenied(subject string, err error) *Error {
	return &Error{Kind: KindPermissionDenied, Subject: subject, Err: err}
}

// VenueError wraps an adapter-level failure (network, auth, venue rejection).
func VenueError(venueID string, err error) *Error {
	return &Error{Kind: KindVenueError, Subject: venueID, Err: err}
}

// StrategyConstruction wraps a missing/invalid parameter failure at construction.
func StrategyConstruction(strategyID string, err error) *Error {
	return &Error{Kind: KindStrategyConstruction, Subject: strategyID, Err: err}
}

// FatalLoop wraps an unexpected error outside tick() (e.g. inside OnStart)
// that stops the strategy loop entirely.
func FatalLoop(strategyID string, err error) *Error {
	return &Error{Kind: KindFatalLoop, Subject: strategyID, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
