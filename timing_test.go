package tcansim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingAdvance(t *testing.T) {
	clock := TimingEngine{}
	assert.EqualValues(t, 0, clock.Now())

	clock.Advance(100 * time.Microsecond)
	assert.EqualValues(t, 100*time.Microsecond, clock.Now())
	assert.EqualValues(t, 0, clock.LastUpdate())

	clock.Advance(50 * time.Microsecond)
	assert.EqualValues(t, 150*time.Microsecond, clock.Now())
	assert.EqualValues(t, 100*time.Microsecond, clock.LastUpdate())
}

func TestTimingNegativeDeltaIgnored(t *testing.T) {
	clock := TimingEngine{}
	clock.Advance(time.Millisecond)
	clock.Advance(-time.Second)
	assert.EqualValues(t, time.Millisecond, clock.Now())
}

func TestTimingHasElapsed(t *testing.T) {
	clock := TimingEngine{}
	clock.Advance(10 * time.Millisecond)
	assert.True(t, clock.HasElapsed(0, 10*time.Millisecond))
	assert.True(t, clock.HasElapsed(5*time.Millisecond, 5*time.Millisecond))
	assert.False(t, clock.HasElapsed(5*time.Millisecond, 6*time.Millisecond))
}

func TestMark(t *testing.T) {
	var m mark
	_, ok := m.elapsed(time.Second)
	assert.False(t, ok)

	m.start(100 * time.Millisecond)
	elapsed, ok := m.elapsed(250 * time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, 150*time.Millisecond, elapsed)

	m.clear()
	_, ok = m.elapsed(time.Second)
	assert.False(t, ok)
}
