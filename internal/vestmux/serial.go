package vestmux

import (
	"fmt"

	"go.bug.st/serial"
)

// NewSerialVestMux opens a real serial port at the given path and wraps it
// in a VestMux.
func NewSerialVestMux(path string, mode *PortMode) (*VestMux[serial.Port], error) {
	if mode == nil {
		mode = DefaultPortMode()
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vest port %s: %w", path, err)
	}
	return NewVestMux[serial.Port](port), nil
}
