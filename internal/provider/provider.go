package provider

import "errors"

// ErrContactNotFound indicates the destination could not be resolved to a
// provider-side contact. Usually a bad destination, not a transient provider
// error; callers treat it as permanent.
var ErrContactNotFound = errors.New("provider contact not found")

// ErrNotConfigured indicates required provider credentials are missing.
// Surfaced as a fail-fast 500, never retried.
var ErrNotConfigured = errors.New("provider not configured")

// Content is the snapshot handed to a provider for one dispatch.
type Content struct {
	Subject string // ignored by whatsapp
	Body    string
}
