// Package harness implements the scripted multi-client simulation
// driver (C7): an in-process loopback that wires real TurnManager and
// FrameExecutor instances together without a socket, plus the
// digest-based determinism check used by testable property S6 and
// scenario S6.
package harness

import (
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/dungeongate/internal/lockstepinput"
)

// Snapshot is one simulation step's observable output: the frame
// index and the merged inputs installed for that step.
type Snapshot struct {
	Frame  int
	Inputs lockstepinput.Table
}

// Digest folds a sequence of snapshots into a rolling FNV-1a checksum.
// Two independent executions that installed the same history at the
// same frames produce the same digest; any divergence in frame
// numbering or installed inputs changes it.
func Digest(snapshots []Snapshot) uint64 {
	h := fnv.New64a()
	for _, snap := range snapshots {
		h.Write([]byte(strconv.Itoa(snap.Frame)))
		h.Write([]byte{0})

		ids := make([]string, 0, len(snap.Inputs))
		for id := range snap.Inputs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			raw := snap.Inputs[id]
			h.Write([]byte(id))
			h.Write([]byte(raw.Movement))
			if raw.Shoot {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		}
		h.Write([]byte{0xFF})
	}
	return h.Sum64()
}
