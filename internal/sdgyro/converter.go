package sdgyro

import (
	"math"
	"time"

	"github.com/itsOwen/SteamDeckMotion/internal/motion"
)

const (
	// Acc1G is the accelerometer reading corresponding to 1 g.
	Acc1G = 0x4000
	// Gyro1DegPerSec is the gyroscope reading corresponding to 1 deg/s.
	Gyro1DegPerSec = 16
	// gyroDeadzone zeroes gyro readings strictly inside (-8, 8) device units.
	gyroDeadzone = 8
	// accelSmooth is the step threshold: a jump of more than this many
	// device units re-seeds the low-pass filter instead of smoothing into it.
	accelSmooth = 0x1FF
)

var bootTime = time.Now()

// nowMicros returns microseconds on a monotonic clock.
func nowMicros() uint64 {
	return uint64(time.Since(bootTime).Microseconds())
}

// Converter turns raw frames into motion samples. It owns the per-axis
// accelerometer low-pass state, so one Converter serves exactly one frame
// stream.
type Converter struct {
	lastAccelRtL float64
	lastAccelFtB float64
	lastAccelTtB float64

	now func() uint64
}

func NewConverter() *Converter {
	return &Converter{now: nowMicros}
}

// smoothAccel applies a single-pole IIR low-pass to one accelerometer axis
// and returns the value in g. A jump of more than accelSmooth device units
// re-seeds the filter with the raw reading.
func smoothAccel(last *float64, curr int16) float64 {
	if math.Abs(float64(curr)-*last) <= accelSmooth {
		*last = *last*0.95 + float64(curr)*0.05
	} else {
		*last = float64(curr)
	}
	return *last / Acc1G
}

// Convert fills out from one raw frame. The timestamp is taken from the
// monotonic clock; the caller overrides it for synthesized frames.
func (c *Converter) Convert(frame Frame, frameID uint32, out *motion.Sample) {
	out.Timestamp = c.now()
	out.FrameID = frameID

	out.AccelX = -smoothAccel(&c.lastAccelRtL, frame.AccelAxisRightToLeft)
	out.AccelY = -smoothAccel(&c.lastAccelFtB, frame.AccelAxisFrontToBack)
	out.AccelZ = smoothAccel(&c.lastAccelTtB, frame.AccelAxisTopToBottom)

	if !frame.HasGyro() {
		out.GyroPitch = 0
		out.GyroYaw = 0
		out.GyroRoll = 0
	} else {
		gyroRtL := frame.GyroAxisRightToLeft
		gyroFtB := frame.GyroAxisFrontToBack
		gyroTtB := frame.GyroAxisTopToBottom

		if gyroRtL < gyroDeadzone && gyroRtL > -gyroDeadzone {
			gyroRtL = 0
		}
		if gyroFtB < gyroDeadzone && gyroFtB > -gyroDeadzone {
			gyroFtB = 0
		}
		if gyroTtB < gyroDeadzone && gyroTtB > -gyroDeadzone {
			gyroTtB = 0
		}

		out.GyroPitch = float64(gyroRtL) / Gyro1DegPerSec
		out.GyroYaw = -float64(gyroFtB) / Gyro1DegPerSec
		out.GyroRoll = float64(gyroTtB) / Gyro1DegPerSec
	}

	out.CalculateMagnitudes()
}
