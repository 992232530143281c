package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/internal/lockstepinput"
)

type recordingSim struct {
	steps []lockstepinput.Table
}

func (s *recordingSim) Step(inputs lockstepinput.Table) {
	s.steps = append(s.steps, inputs)
}

func TestFrameExecutor_AdvancesWithoutInputFrame(t *testing.T) {
	sim := &recordingSim{}
	exec := NewFrameExecutor(30, 5, 10, sim, nil)
	exec.SetT0(0)

	// frame 0 is the special non-input first tick (spec §4.5).
	ok := exec.advanceOneFrame()
	require.True(t, ok)
	assert.Equal(t, 1, exec.CurrentFrame())
	assert.Len(t, sim.steps, 1)
}

func TestFrameExecutor_StallsOnMissingTurnBoundary(t *testing.T) {
	var requested []int
	sim := &recordingSim{}
	exec := NewFrameExecutor(30, 5, 10, sim, func(f []int) { requested = append(requested, f...) })
	exec.SetT0(0)

	for exec.CurrentFrame() < 5 {
		require.True(t, exec.advanceOneFrame())
	}

	ok := exec.advanceOneFrame()
	assert.False(t, ok)
	assert.Equal(t, 5, exec.CurrentFrame())
	assert.Empty(t, requested) // latest == -1, no gap detected yet
}

func TestFrameExecutor_InstallsMergedInputsAtTurnBoundary(t *testing.T) {
	sim := &recordingSim{}
	exec := NewFrameExecutor(30, 5, 10, sim, nil)
	exec.SetT0(0)

	exec.InstallRow(5, lockstepinput.Row{
		"a": {{Movement: lockstepinput.MovementUp}, {Movement: lockstepinput.MovementStop, Shoot: true}},
	})

	for exec.CurrentFrame() < 6 {
		require.True(t, exec.advanceOneFrame())
	}

	installed := sim.steps[5] // the step invoked for frame 5
	assert.Equal(t, lockstepinput.RawInput{Movement: lockstepinput.MovementUp, Shoot: true}, installed.Lookup("a"))
}

func TestFrameExecutor_RequestsMissingFrames(t *testing.T) {
	var requested []int
	sim := &recordingSim{}
	exec := NewFrameExecutor(30, 5, 10, sim, func(f []int) { requested = append(requested, f...) })
	exec.SetT0(0)

	exec.InstallRow(15, lockstepinput.Row{"a": {}})

	for exec.CurrentFrame() < 5 {
		require.True(t, exec.advanceOneFrame())
	}

	ok := exec.advanceOneFrame() // frame 5 missing, but latest(15) > 5
	assert.False(t, ok)
	assert.Equal(t, []int{5, 10}, requested)
}

func TestFrameExecutor_GapFillIdempotence(t *testing.T) {
	exec := NewFrameExecutor(30, 5, 10, &recordingSim{}, nil)
	row := lockstepinput.Row{"a": {{Movement: lockstepinput.MovementLeft}}}

	exec.InstallRow(5, row)
	exec.InstallRow(5, lockstepinput.Row{"a": {{Movement: lockstepinput.MovementRight}}})

	got, ok := exec.buffer.Get(5)
	require.True(t, ok)
	assert.Equal(t, row, got)
}

func TestFrameExecutor_CatchupCapBoundsAdvancesPerUpdate(t *testing.T) {
	sim := &recordingSim{}
	exec := NewFrameExecutor(30, 5, 3, sim, nil)
	exec.SetT0(0)

	start := time.UnixMilli(0)
	exec.Update(start)
	// seed the accumulator with far more than catchupCap frames worth of time
	exec.Update(start.Add(1 * time.Second))

	assert.LessOrEqual(t, exec.CurrentFrame(), 4) // at most catchupCap advances past the first tick
}
