// Package lockstepinput implements the logical input model (C3): the
// raw per-capture input record, the per-turn merge law, and the
// client-side per-turn table keyed by client id.
package lockstepinput

// Movement is one of the five directions a RawInput's movement field
// can carry. Stop is the zero value and is never transmitted on the
// wire on its own (spec §3: the empty input is never transmitted).
type Movement string

const (
	MovementStop  Movement = "stop"
	MovementUp    Movement = "up"
	MovementDown  Movement = "down"
	MovementLeft  Movement = "left"
	MovementRight Movement = "right"
)

// RawInput is one captured input sample: a movement direction and a
// shoot flag. The zero value {MovementStop, false} is the empty input.
type RawInput struct {
	Movement Movement `json:"movement"`
	Shoot    bool     `json:"shoot"`
}

// Empty is the canonical empty RawInput.
var Empty = RawInput{Movement: MovementStop, Shoot: false}

// IsEmpty reports whether raw is the empty input.
func IsEmpty(raw RawInput) bool {
	return raw.Movement == MovementStop && !raw.Shoot
}

// List is an ordered per-turn sequence of non-empty raw inputs captured
// by one client during one turn, in capture order.
type List []RawInput

// Merge folds a per-turn list into a single RawInput per the binding
// merge law (spec §4.3): movement is the last non-stop movement in the
// list, else stop; shoot is the logical OR of every element's shoot
// field. Merge is associative over concatenation and idempotent with
// respect to appending empty inputs — merge([]) == Empty.
func Merge(list List) RawInput {
	result := Empty
	for _, raw := range list {
		if raw.Movement != MovementStop {
			result.Movement = raw.Movement
		}
		if raw.Shoot {
			result.Shoot = true
		}
	}
	return result
}

// Row is the finalized mapping client_id -> per-turn input list for one
// turn, as carried on the wire in input_frame and frame_response
// (spec §3: a missing client for a turn is encoded as the empty list,
// never as a missing key — callers populate every connected client's
// key even when its list is empty).
type Row map[string]List

// Table is the client-side per-turn table derived from the last
// received input_frame/frame_response: client_id -> merged RawInput
// for the currently-installed turn. Lookup returns the empty input for
// any client absent from the table (spec §4.3).
type Table map[string]RawInput

// Lookup returns the merged input for clientID, or Empty if absent.
func (t Table) Lookup(clientID string) RawInput {
	if raw, ok := t[clientID]; ok {
		return raw
	}
	return Empty
}

// InstallRow builds a Table by merging every client's list in row.
func InstallRow(row Row) Table {
	table := make(Table, len(row))
	for clientID, list := range row {
		table[clientID] = Merge(list)
	}
	return table
}
