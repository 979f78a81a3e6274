package sdgyro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsOwen/SteamDeckMotion/internal/hiddev"
)

func TestSimulatorProducesParsableFrames(t *testing.T) {
	t.Parallel()

	sim := NewSimulator()
	buf := make([]byte, 512)

	var last uint32
	for i := 0; i < 3; i++ {
		n, err := sim.Read(buf)
		require.NoError(t, err)
		require.Equal(t, hiddev.FrameLen, n)

		f, err := ParseFrame(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, last+1, f.Increment)
		assert.True(t, f.HasGyro())
		assert.False(t, f.AllAxesZero())
		// Resting roughly flat: top-to-bottom axis near 1 g.
		assert.InDelta(t, Acc1G, float64(f.AccelAxisTopToBottom), 200)
		last = f.Increment
	}
}

func TestSimulatorClose(t *testing.T) {
	t.Parallel()

	sim := NewSimulator()
	require.NoError(t, sim.Close())
	_, err := sim.Read(make([]byte, 64))
	assert.Error(t, err)
}
