package sdgyro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsOwen/SteamDeckMotion/internal/hiddev"
)

func TestParseFrame(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		in := Frame{
			Header:    defaultHeader,
			Increment: 0xDEADBEEF,

			AccelAxisRightToLeft: -12345,
			AccelAxisTopToBottom: 16384,
			AccelAxisFrontToBack: 513,

			GyroAxisRightToLeft: 7,
			GyroAxisTopToBottom: -8,
			GyroAxisFrontToBack: 32767,
		}
		out, err := ParseFrame(in.Encode())
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("encoded frame starts with the report marker", func(t *testing.T) {
		t.Parallel()
		f := Frame{Header: defaultHeader}
		b := f.Encode()
		require.Len(t, b, hiddev.FrameLen)
		assert.Equal(t, hiddev.DefaultStartMarker, b[:len(hiddev.DefaultStartMarker)])
	})

	t.Run("short report rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ParseFrame(make([]byte, hiddev.FrameLen-1))
		assert.Error(t, err)
	})
}

func TestFrameHasGyro(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header uint32
		want   bool
	}{
		{"normal header", defaultHeader, true},
		{"no-gyro sentinel in low byte", 0x400900DD, false},
		{"sentinel elsewhere only", 0xDD090001, true},
		{"zero header", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := Frame{Header: tt.header}
			assert.Equal(t, tt.want, f.HasGyro())
		})
	}
}

func TestFrameAllAxesZero(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Frame{Header: defaultHeader, Increment: 9}).AllAxesZero())
	assert.False(t, (&Frame{GyroAxisTopToBottom: 1}).AllAxesZero())
	assert.False(t, (&Frame{AccelAxisFrontToBack: -1}).AllAxesZero())
}
