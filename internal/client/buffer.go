package client

import (
	"sync"

	"github.com/dungeongate/internal/lockstepinput"
)

// InputBuffer is the thread-safe hand-off point between the network
// receiver and the update scheduler (spec §4.5/§5): turn-boundary frame
// number -> row, plus the running high-water mark of frames observed
// so far.
type InputBuffer struct {
	mu     sync.Mutex
	rows   map[int]lockstepinput.Row
	latest int
}

// NewInputBuffer constructs an empty buffer.
func NewInputBuffer() *InputBuffer {
	return &InputBuffer{rows: make(map[int]lockstepinput.Row), latest: -1}
}

// Put stores the row for frame, idempotently: re-delivering a frame
// already present does not change installed history (spec testable
// property 7, gap-fill idempotence).
func (b *InputBuffer) Put(frame int, row lockstepinput.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.rows[frame]; exists {
		return
	}
	b.rows[frame] = row
	if frame > b.latest {
		b.latest = frame
	}
}

// Get retrieves the row for frame, if present.
func (b *InputBuffer) Get(frame int) (lockstepinput.Row, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[frame]
	return row, ok
}

// LatestReceived returns the highest frame number ever observed, or -1
// if none.
func (b *InputBuffer) LatestReceived() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}
