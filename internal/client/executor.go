// Package client implements the client frame executor (C5): a
// wall-clock-anchored, accumulator-based fixed-step driver that
// installs merged per-turn inputs at turn boundaries, tolerates late
// input frames via a bounded catch-up, and requests missing frames on
// demand.
package client

import (
	"time"

	"github.com/dungeongate/internal/lockstepinput"
)

// Simulator is the external collaborator this core drives but does
// not implement (spec §4.7): a pure function of its arguments and
// prior state, advancing physics by exactly one DELTA per call using
// only the deterministic primitives layer.
type Simulator interface {
	Step(logicalInputs lockstepinput.Table)
}

// FrameExecutor runs the frame-advance rule of spec §4.5. It must be
// driven by a single logical scheduler; Update is not safe to call
// concurrently with itself. InstallRow, by contrast, is safe to call
// from a separate network receiver goroutine at any time.
type FrameExecutor struct {
	tickHz     int
	turnSize   int
	catchupCap int

	frameIntervalMS float64

	t0              int64
	started         bool
	lastUpdate      time.Time
	accumulator     float64
	currentFrame    int
	waitingForInput bool
	logicalInputs   lockstepinput.Table

	buffer               *InputBuffer
	sim                  Simulator
	requestFrames        func(frames []int)
	onFrameAdvanced      func(frame int, inputs lockstepinput.Table)
}

// NewFrameExecutor constructs a FrameExecutor. requestFrames is called
// (possibly with a long list) whenever a gap is detected; it is the
// caller's responsibility to encode and send request_frames.
func NewFrameExecutor(tickHz, turnSize, catchupCap int, sim Simulator, requestFrames func([]int)) *FrameExecutor {
	return &FrameExecutor{
		tickHz:          tickHz,
		turnSize:        turnSize,
		catchupCap:      catchupCap,
		frameIntervalMS: 1000.0 / float64(tickHz),
		buffer:          NewInputBuffer(),
		sim:             sim,
		requestFrames:   requestFrames,
		logicalInputs:   lockstepinput.Table{},
	}
}

// OnFrameAdvanced installs an optional observer invoked after every
// successful frame advance, used by the test harness to fold frames
// into a determinism digest (C7).
func (e *FrameExecutor) OnFrameAdvanced(fn func(frame int, inputs lockstepinput.Table)) {
	e.onFrameAdvanced = fn
}

// SetT0 binds the executor to the session's anchor time, received
// once from game_start and identical on every peer.
func (e *FrameExecutor) SetT0(t0Millis int64) {
	e.t0 = t0Millis
}

// CurrentFrame returns the executor's current logical frame.
func (e *FrameExecutor) CurrentFrame() int {
	return e.currentFrame
}

// InstallRow delivers a finalized row for a turn-boundary frame,
// received from either input_frame or frame_response. Safe to call
// concurrently with Update.
func (e *FrameExecutor) InstallRow(frame int, row lockstepinput.Row) {
	e.buffer.Put(frame, row)
}

// Update runs the frame-advance rule for one real-time tick. It must
// be called on the single logical update scheduler.
func (e *FrameExecutor) Update(now time.Time) {
	if now.UnixMilli() < e.t0 {
		return
	}
	if !e.started {
		e.started = true
		e.lastUpdate = now
	}

	dt := now.Sub(e.lastUpdate).Seconds() * 1000
	e.lastUpdate = now
	e.accumulator += dt

	advances := 0
	for e.accumulator >= e.frameIntervalMS {
		if !e.advanceOneFrame() {
			break
		}
		e.accumulator -= e.frameIntervalMS
		advances++
		if advances >= e.catchupCap {
			break
		}
	}
}

func (e *FrameExecutor) advanceOneFrame() bool {
	f := e.currentFrame

	if f != 0 && f%e.turnSize == 0 {
		if row, ok := e.buffer.Get(f); ok {
			e.logicalInputs = lockstepinput.InstallRow(row)
			e.waitingForInput = false
		} else {
			e.waitingForInput = true
			latest := e.buffer.LatestReceived()
			if latest > f {
				e.requestMissing(f, latest)
			}
			return false
		}
	} else {
		e.logicalInputs = lockstepinput.Table{}
	}

	e.sim.Step(e.logicalInputs)
	if e.onFrameAdvanced != nil {
		e.onFrameAdvanced(f, e.logicalInputs)
	}
	e.currentFrame = f + 1
	return true
}

func (e *FrameExecutor) requestMissing(from, latest int) {
	var missing []int
	for boundary := from; boundary <= latest; boundary += e.turnSize {
		if _, ok := e.buffer.Get(boundary); !ok {
			missing = append(missing, boundary)
		}
	}
	if len(missing) > 0 && e.requestFrames != nil {
		e.requestFrames(missing)
	}
}
