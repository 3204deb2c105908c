package auth

import "net/url"

// WidgetModeInputs are the facts widget-mode detection is computed from. All
// of them are injected at composition time; the computed value is then carried
// as plain configuration rather than re-derived lazily at call sites.
type WidgetModeInputs struct {
	// Explicit is the tri-state flag set by the embedding bootstrap. When
	// non-nil it decides alone.
	Explicit *bool
	// Query is the page query string of the execution context.
	Query url.Values
	// StoredFlag reads the persisted widget-mode opt-in.
	StoredFlag func() bool
	// FrameNested reports whether the execution context is nested inside
	// another browsing context. An error means the check itself was blocked
	// (cross-origin), which only happens when embedded.
	FrameNested func() (bool, error)
}

// ResolveWidgetMode applies the fallback chain: explicit flag, then the
// widget=true query parameter, then the persisted flag, then frame nesting.
func ResolveWidgetMode(in WidgetModeInputs) bool {
	if in.Explicit != nil {
		return *in.Explicit
	}
	if in.Query.Get("widget") == "true" {
		return true
	}
	if in.StoredFlag != nil && in.StoredFlag() {
		return true
	}
	if in.FrameNested != nil {
		nested, err := in.FrameNested()
		if err != nil {
			return true
		}
		return nested
	}
	return false
}
