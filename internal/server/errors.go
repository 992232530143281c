package server

import "errors"

// ErrGameInProgress is the close reason for a connection attempt that
// arrives while the session is not in LOBBY (spec §4.4).
var ErrGameInProgress = errors.New("Game already in progress")

// ErrInvariantViolation is the server-side sentinel for a bug in the
// turn manager (spec §7). No function in this package returns it; a
// gap-fill request for a turn not yet finalized is not an error, and
// HandleRequestFrames simply omits that frame from its reply.
var ErrInvariantViolation = errors.New("server: invariant violation")

// ErrProtocolViolation marks a message that is well-formed but arrives
// in a state that does not expect it (e.g. input before game_start).
// Per spec §7 this is logged and ignored, never penalized — it is
// never returned to a caller, only wrapped into a log line at the
// point of detection.
var ErrProtocolViolation = errors.New("server: protocol violation")

// ErrReconnectTokenInvalid marks a reconnect token that failed
// signature verification or has expired.
var ErrReconnectTokenInvalid = errors.New("server: reconnect token invalid")

// ErrMaxConnections is returned when the registry is at capacity.
var ErrMaxConnections = errors.New("server: max connections reached")

// ErrRateLimited is returned when a remote IP exceeds its connection
// rate limit.
var ErrRateLimited = errors.New("server: rate limit exceeded")
