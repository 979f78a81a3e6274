// Package sdgyro interprets the Steam Deck controller's 64-byte motion
// reports and adapts the raw ~250 Hz frame stream into sanitized motion
// samples.
package sdgyro

import (
	"encoding/binary"
	"fmt"

	"github.com/itsOwen/SteamDeckMotion/internal/hiddev"
)

// ScanTimeUs is the nominal period between controller reports in
// microseconds (~250 Hz).
const ScanTimeUs = 4000

// noGyroHeaderByte marks a report that carries no gyroscope data. The check
// applies to the low byte of the report's first 16-bit word.
const noGyroHeaderByte = 0xDD

/*
Motion report layout (64 bytes, little-endian):

	offset  0  uint32  Header     first word is the report start marker
	offset  4  uint32  Increment  device frame counter, +1 per report
	offset  8  int64   (unused)
	offset 16  int16   AccelAxisRightToLeft
	offset 18  int16   AccelAxisTopToBottom
	offset 20  int16   AccelAxisFrontToBack
	offset 22  int16   GyroAxisRightToLeft
	offset 24  int16   GyroAxisTopToBottom
	offset 26  int16   GyroAxisFrontToBack
	offset 28  ...     button/stick state, not used here
*/
type Frame struct {
	Header    uint32
	Increment uint32

	AccelAxisRightToLeft int16
	AccelAxisTopToBottom int16
	AccelAxisFrontToBack int16

	GyroAxisRightToLeft int16
	GyroAxisTopToBottom int16
	GyroAxisFrontToBack int16
}

// ParseFrame decodes one raw report.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < hiddev.FrameLen {
		return Frame{}, fmt.Errorf("short motion report: got %d bytes, want %d", len(b), hiddev.FrameLen)
	}
	return Frame{
		Header:    binary.LittleEndian.Uint32(b[0:4]),
		Increment: binary.LittleEndian.Uint32(b[4:8]),

		AccelAxisRightToLeft: int16(binary.LittleEndian.Uint16(b[16:18])),
		AccelAxisTopToBottom: int16(binary.LittleEndian.Uint16(b[18:20])),
		AccelAxisFrontToBack: int16(binary.LittleEndian.Uint16(b[20:22])),

		GyroAxisRightToLeft: int16(binary.LittleEndian.Uint16(b[22:24])),
		GyroAxisTopToBottom: int16(binary.LittleEndian.Uint16(b[24:26])),
		GyroAxisFrontToBack: int16(binary.LittleEndian.Uint16(b[26:28])),
	}, nil
}

// Encode serializes the frame into a fresh 64-byte report. Bytes not covered
// by the parsed fields stay zero. Used by the simulated device and tests.
func (f *Frame) Encode() []byte {
	b := make([]byte, hiddev.FrameLen)
	binary.LittleEndian.PutUint32(b[0:4], f.Header)
	binary.LittleEndian.PutUint32(b[4:8], f.Increment)
	binary.LittleEndian.PutUint16(b[16:18], uint16(f.AccelAxisRightToLeft))
	binary.LittleEndian.PutUint16(b[18:20], uint16(f.AccelAxisTopToBottom))
	binary.LittleEndian.PutUint16(b[20:22], uint16(f.AccelAxisFrontToBack))
	binary.LittleEndian.PutUint16(b[22:24], uint16(f.GyroAxisRightToLeft))
	binary.LittleEndian.PutUint16(b[24:26], uint16(f.GyroAxisTopToBottom))
	binary.LittleEndian.PutUint16(b[26:28], uint16(f.GyroAxisFrontToBack))
	return b
}

// HasGyro reports whether the frame carries gyroscope data.
func (f *Frame) HasGyro() bool {
	return byte(f.Header) != noGyroHeaderByte
}

// AllAxesZero reports whether every accelerometer and gyroscope axis reads
// exactly zero, the signature of a stuck sensor.
func (f *Frame) AllAxesZero() bool {
	return f.AccelAxisRightToLeft == 0 && f.AccelAxisTopToBottom == 0 && f.AccelAxisFrontToBack == 0 &&
		f.GyroAxisRightToLeft == 0 && f.GyroAxisTopToBottom == 0 && f.GyroAxisFrontToBack == 0
}

// defaultHeader is the Header value whose little-endian bytes equal the
// report start marker.
var defaultHeader = binary.LittleEndian.Uint32(hiddev.DefaultStartMarker)
