package protocol

import "errors"

// ErrDecodeError marks malformed framing or JSON (spec §7: "decode
// error"). Action at the call site is to log, discard the message, and
// keep the connection.
var ErrDecodeError = errors.New("protocol: decode error")

// ErrUnknownMessage marks a well-formed envelope whose type tag is
// outside the closed catalog (spec §7: "unknown message"). Action at
// the call site is to log at debug and ignore; it is never fatal.
var ErrUnknownMessage = errors.New("protocol: unknown message type")
