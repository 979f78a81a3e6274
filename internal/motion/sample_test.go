package motion

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendJSON(t *testing.T) {
	t.Parallel()

	t.Run("fixed key order and four decimals", func(t *testing.T) {
		t.Parallel()
		s := Sample{
			Timestamp: 123456,
			AccelX:    0.5,
			AccelY:    -0.25,
			AccelZ:    1,
			GyroPitch: 1.5,
			GyroYaw:   -2,
			GyroRoll:  0,
			FrameID:   42,
		}
		s.CalculateMagnitudes()

		want := `{"timestamp":123456,"accel":{"x":0.5000,"y":-0.2500,"z":1.0000},` +
			`"gyro":{"pitch":1.5000,"yaw":-2.0000,"roll":0.0000},"frameId":42,` +
			`"magnitude":{"accel":1.1456,"gyro":2.5000}}`
		assert.Equal(t, want, string(s.ToJSON()))
	})

	t.Run("encoding is deterministic", func(t *testing.T) {
		t.Parallel()
		s := Sample{
			Timestamp: 987654321,
			AccelX:    -0.0123,
			AccelY:    0.9876,
			AccelZ:    0.1111,
			GyroPitch: 250.125,
			GyroYaw:   -31.0625,
			GyroRoll:  0.0625,
			FrameID:   4294967295,
		}
		s.CalculateMagnitudes()
		assert.Equal(t, s.ToJSON(), s.ToJSON())
	})

	t.Run("payload parses as JSON with expected fields", func(t *testing.T) {
		t.Parallel()
		s := Sample{Timestamp: 1, AccelZ: 1, FrameID: 7}
		s.CalculateMagnitudes()

		var decoded struct {
			Timestamp uint64 `json:"timestamp"`
			Accel     struct {
				X, Y, Z float64
			} `json:"accel"`
			Gyro struct {
				Pitch, Yaw, Roll float64
			} `json:"gyro"`
			FrameID   uint32 `json:"frameId"`
			Magnitude struct {
				Accel, Gyro float64
			} `json:"magnitude"`
		}
		require.NoError(t, json.Unmarshal(s.ToJSON(), &decoded))
		assert.Equal(t, uint64(1), decoded.Timestamp)
		assert.Equal(t, uint32(7), decoded.FrameID)
		assert.InDelta(t, 1.0, decoded.Accel.Z, 1e-9)
		assert.InDelta(t, 1.0, decoded.Magnitude.Accel, 1e-9)
	})

	t.Run("no whitespace or trailing newline", func(t *testing.T) {
		t.Parallel()
		s := Sample{}
		payload := s.ToJSON()
		assert.NotContains(t, string(payload), " ")
		assert.NotContains(t, string(payload), "\n")
	})

	t.Run("append reuses the provided buffer", func(t *testing.T) {
		t.Parallel()
		s := Sample{Timestamp: 5}
		buf := make([]byte, 0, 512)
		out := s.AppendJSON(buf)
		assert.Equal(t, string(s.ToJSON()), string(out))
		assert.True(t, &buf[:1][0] == &out[0], "output must share the provided buffer's backing array")
	})
}

func TestCalculateMagnitudes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sample    Sample
		wantAccel float64
		wantGyro  float64
	}{
		{"zero", Sample{}, 0, 0},
		{"unit z", Sample{AccelZ: 1}, 1, 0},
		{"pythagorean", Sample{AccelX: 3, AccelY: 4, GyroPitch: 5, GyroYaw: 12}, 5, 13},
		{"negative axes", Sample{AccelX: -1, AccelY: -1, AccelZ: -1}, math.Sqrt(3), 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := tt.sample
			s.CalculateMagnitudes()
			assert.InDelta(t, tt.wantAccel, s.AccelMagnitude, 1e-12)
			assert.InDelta(t, tt.wantGyro, s.GyroMagnitude, 1e-12)
		})
	}
}
