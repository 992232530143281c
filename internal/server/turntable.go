package server

import (
	"sync/atomic"

	"github.com/dungeongate/internal/lockstepinput"
)

// TurnTable is the append-only mapping turn_index -> finalized row
// (spec §3). Finalize has one writer at a time: TurnManager writes row
// 0 from HandleClientReady before the tick loop finalizes anything, and
// every later row from the tick loop; Row takes no lock on the read
// path, matching the
// concurrency model in spec §5 — readers observe a single atomically
// published slice and index into it directly.
type TurnTable struct {
	rows atomic.Pointer[[]lockstepinput.Row]
}

// NewTurnTable constructs an empty turn table.
func NewTurnTable() *TurnTable {
	t := &TurnTable{}
	empty := make([]lockstepinput.Row, 0, 64)
	t.rows.Store(&empty)
	return t
}

// Finalize appends row as turn table entry for the next turn index and
// returns that index. Not safe for concurrent writers.
func (t *TurnTable) Finalize(row lockstepinput.Row) int {
	old := *t.rows.Load()
	next := make([]lockstepinput.Row, len(old)+1)
	copy(next, old)
	next[len(old)] = row
	t.rows.Store(&next)
	return len(old)
}

// Row returns the finalized row for turn, and whether it has been
// finalized yet.
func (t *TurnTable) Row(turn int) (lockstepinput.Row, bool) {
	rows := *t.rows.Load()
	if turn < 0 || turn >= len(rows) {
		return nil, false
	}
	return rows[turn], true
}

// LastFinalized returns the highest finalized turn index, or -1 if
// none has been finalized yet.
func (t *TurnTable) LastFinalized() int {
	return len(*t.rows.Load()) - 1
}
