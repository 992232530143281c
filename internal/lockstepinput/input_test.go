package lockstepinput

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_Empty(t *testing.T) {
	assert.Equal(t, Empty, Merge(nil))
	assert.Equal(t, Empty, Merge(List{}))
}

func TestMerge_MovementIsLastNonStop(t *testing.T) {
	list := List{
		{Movement: MovementRight, Shoot: false},
		{Movement: MovementUp, Shoot: false},
		{Movement: MovementStop, Shoot: true},
	}
	merged := Merge(list)
	assert.Equal(t, MovementUp, merged.Movement)
	assert.True(t, merged.Shoot)
}

func TestMerge_ShootIsOR(t *testing.T) {
	list := List{
		{Movement: MovementStop, Shoot: false},
		{Movement: MovementStop, Shoot: true},
	}
	merged := Merge(list)
	assert.Equal(t, MovementStop, merged.Movement)
	assert.True(t, merged.Shoot)
}

func TestMerge_AppendingEmptyIsNoOp(t *testing.T) {
	base := List{{Movement: MovementLeft, Shoot: true}}
	withEmpty := append(append(List{}, base...), Empty)
	assert.Equal(t, Merge(base), Merge(withEmpty))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(RawInput{Movement: MovementStop, Shoot: false}))
	assert.False(t, IsEmpty(RawInput{Movement: MovementStop, Shoot: true}))
	assert.False(t, IsEmpty(RawInput{Movement: MovementUp, Shoot: false}))
}

func TestTable_LookupMissingIsEmpty(t *testing.T) {
	table := Table{"a": {Movement: MovementUp, Shoot: true}}
	assert.Equal(t, Empty, table.Lookup("b"))
	assert.Equal(t, RawInput{Movement: MovementUp, Shoot: true}, table.Lookup("a"))
}

func TestInstallRow(t *testing.T) {
	row := Row{
		"a": {{Movement: MovementRight}, {Movement: MovementStop, Shoot: true}},
		"b": {},
	}
	table := InstallRow(row)
	assert.Equal(t, RawInput{Movement: MovementRight, Shoot: true}, table.Lookup("a"))
	assert.Equal(t, Empty, table.Lookup("b"))
}

func TestStagingBuffer_DrainFillsEveryConnectedClient(t *testing.T) {
	buf := NewStagingBuffer()
	buf.Ingest("a", RawInput{Movement: MovementUp})

	row := buf.Drain([]string{"a", "b"})

	assert.Equal(t, List{{Movement: MovementUp}}, row["a"])
	assert.Equal(t, List{}, row["b"])
}

func TestStagingBuffer_DrainClearsState(t *testing.T) {
	buf := NewStagingBuffer()
	buf.Ingest("a", RawInput{Movement: MovementUp})
	buf.Drain([]string{"a"})

	row := buf.Drain([]string{"a"})
	assert.Equal(t, List{}, row["a"])
}
