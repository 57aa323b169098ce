package gwerr

import "errors"

// Gateway error taxonomy. Handlers map these onto the response envelope;
// provider and network faults never propagate past the dispatcher as raw
// errors.
var (
	// ErrCredentialsNotFound means no datastore/provider credentials
	// resolve for the organization. Fatal, never retried.
	ErrCredentialsNotFound = errors.New("credentials not found for organization")

	// ErrInstanceLimitReached is returned when creating an instance past
	// the organization's provisioned limit.
	ErrInstanceLimitReached = errors.New("instance limit reached")

	// ErrTokenInvalid covers unknown or revoked client/instance tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrProviderUnreachable is a network or timeout failure talking to a
	// backend. Safe to retry with backoff.
	ErrProviderUnreachable = errors.New("provider unreachable")

	// ErrProviderLogical means the backend answered but reported failure.
	// Surfaced verbatim, not retried.
	ErrProviderLogical = errors.New("provider reported an error")

	// ErrNumberNotOnWhatsApp is raised by strict-mode sends before any
	// dispatch is attempted.
	ErrNumberNotOnWhatsApp = errors.New("number is not registered on whatsapp")

	// ErrUnsupportedOperation marks a capability gap of the selected
	// backend.
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")
)

// Session-level sentinels. The backends report these conditions as error
// strings; the adapters normalize them here so callers can branch with
// errors.Is instead of string matching.
var (
	ErrAlreadyConnected = errors.New("session already connected")
	ErrAlreadyLoggedIn  = errors.New("session already logged in")
	ErrNoSession        = errors.New("session does not exist yet")
)
