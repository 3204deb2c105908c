package sdk

// Listener receives asynchronous client events. All callbacks are delivered
// from a single dispatch goroutine, in order, so implementations never need
// their own locking against this client.
type Listener interface {
	// OnCredentialChanged fires when the active credential is replaced or
	// invalidated. reason is one of the auth package's broadcast reasons.
	OnCredentialChanged(reason string)

	// OnSessionsRefreshed fires after the cached session list changes.
	OnSessionsRefreshed()

	// OnNotice delivers a dismissible, non-blocking failure notice.
	OnNotice(message string)
}

// NoopListener implements Listener with empty methods. Embed it to pick only
// the callbacks you care about.
type NoopListener struct{}

func (NoopListener) OnCredentialChanged(string) {}
func (NoopListener) OnSessionsRefreshed()       {}
func (NoopListener) OnNotice(string)            {}
