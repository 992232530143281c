package protocol

import "github.com/dungeongate/internal/lockstepinput"

// RawInputToPayload converts a domain RawInput to its wire shape.
func RawInputToPayload(raw lockstepinput.RawInput) InputPayload {
	return InputPayload{Movement: string(raw.Movement), Shoot: raw.Shoot}
}

// PayloadToRawInput converts a wire InputPayload to the domain type.
func PayloadToRawInput(p InputPayload) lockstepinput.RawInput {
	return lockstepinput.RawInput{Movement: lockstepinput.Movement(p.Movement), Shoot: p.Shoot}
}

// ListToPayloads converts a domain per-turn list to its wire shape.
func ListToPayloads(list lockstepinput.List) []InputPayload {
	out := make([]InputPayload, len(list))
	for i, raw := range list {
		out[i] = RawInputToPayload(raw)
	}
	return out
}

// PayloadsToList converts a wire input list to the domain type.
func PayloadsToList(payloads []InputPayload) lockstepinput.List {
	out := make(lockstepinput.List, len(payloads))
	for i, p := range payloads {
		out[i] = PayloadToRawInput(p)
	}
	return out
}

// RowToWire converts a domain Row to the wire shape used by input_frame
// and frame_response.
func RowToWire(row lockstepinput.Row) map[string][]InputPayload {
	out := make(map[string][]InputPayload, len(row))
	for clientID, list := range row {
		out[clientID] = ListToPayloads(list)
	}
	return out
}

// WireToRow converts a wire row back to the domain type.
func WireToRow(wire map[string][]InputPayload) lockstepinput.Row {
	out := make(lockstepinput.Row, len(wire))
	for clientID, payloads := range wire {
		out[clientID] = PayloadsToList(payloads)
	}
	return out
}
