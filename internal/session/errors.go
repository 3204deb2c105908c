package session

import "errors"

// ErrNoActiveSession is returned when a send is attempted with no session
// selected. Outside of bootstrap this only happens transiently.
var ErrNoActiveSession = errors.New("no active session")

// ErrSendInFlight is returned when a send is attempted on a session that
// already has one in flight. Sends are single-flight per session.
var ErrSendInFlight = errors.New("send already in flight")

// ErrCreateInFlight is returned when a session creation is attempted while a
// previous one has not completed.
var ErrCreateInFlight = errors.New("session creation already in flight")
