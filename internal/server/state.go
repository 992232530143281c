package server

// SessionState is one of the five server-side session states in the
// turn manager's state machine (spec §4.4).
type SessionState string

const (
	StateLobby     SessionState = "LOBBY"
	StateReady     SessionState = "READY"
	StateScheduled SessionState = "SCHEDULED"
	StateRunning   SessionState = "RUNNING"
	StateAborted   SessionState = "ABORTED"
)
