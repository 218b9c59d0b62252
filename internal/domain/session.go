package domain

import "errors"

// ErrMissingConversationID is returned when a start call succeeds without
// yielding a conversation identifier.
var ErrMissingConversationID = errors.New("no conversation_id returned from start")

// SessionState is the lifecycle position of a widget session.
type SessionState string

const (
	SessionUninitialized SessionState = "uninitialized"
	SessionStarting      SessionState = "starting"
	SessionActive        SessionState = "active"
	SessionReset         SessionState = "reset"
)

// Session correlates a sequence of conversation turns with the remote
// assistant. ID is empty unless State is SessionActive.
type Session struct {
	ID    string
	State SessionState
}

// Active reports whether conversation requests may be sent.
func (s Session) Active() bool {
	return s.State == SessionActive && s.ID != ""
}
