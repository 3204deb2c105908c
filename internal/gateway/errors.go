package gateway

import "errors"

// ErrUnauthenticated is returned when no credential is resolvable anywhere.
// The hosting layer surfaces this as a blocked/waiting state.
var ErrUnauthenticated = errors.New("authentication required")

// ErrAuthRejected is returned for any 401/403 backend response. By the time a
// caller sees it the credential slots have already been invalidated, so the
// next access re-resolves from scratch.
var ErrAuthRejected = errors.New("authorization rejected")
