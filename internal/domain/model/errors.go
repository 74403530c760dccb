package model

import "errors"

// [ERROR_TAXONOMY]
// Boundary layers (ws frames, HTTP handlers) classify failures with errors.Is
// against these sentinels; services wrap them with fmt.Errorf("...: %w").
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrNotOnline       = errors.New("identity has no live connection")
	ErrConnClosed      = errors.New("connection closed")

	// ErrTransientDelivery marks a push attempt that may succeed later.
	ErrTransientDelivery = errors.New("transient delivery failure")
	// ErrPermanentTokenInvalid marks a device token the push provider will never accept again.
	ErrPermanentTokenInvalid = errors.New("permanent token invalid")
)

// ErrorCode maps an error onto the short code sent to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidTarget):
		return "INVALID_TARGET"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotOnline):
		return "NOT_ONLINE"
	case errors.Is(err, ErrConnClosed):
		return "CONNECTION_CLOSED"
	default:
		return "INTERNAL"
	}
}
