package hiddev

import (
	"fmt"

	hid "github.com/sstallion/go-hid"
)

// Steam Deck Controls USB identity. The motion reports are served on
// interface 2 of the controller's composite device.
const (
	VendorID        = 0x28de
	ProductID       = 0x1205
	InterfaceNumber = 2
)

// NewDeckReader opens the Steam Deck controller's motion report interface
// and returns a Reader configured with the firmware start marker.
func NewDeckReader() (*Reader[*hid.Device], error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize hidapi: %w", err)
	}

	var path string
	err := hid.Enumerate(VendorID, ProductID, func(info *hid.DeviceInfo) error {
		if info.InterfaceNbr == InterfaceNumber {
			path = info.Path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}
	if path == "" {
		return nil, fmt.Errorf("controller HID interface not found (vid %04x pid %04x interface %d)",
			VendorID, ProductID, InterfaceNumber)
	}

	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open HID device %s: %w", path, err)
	}

	r := NewReader(dev, FrameLen)
	r.SetStartMarker(DefaultStartMarker)
	return r, nil
}
