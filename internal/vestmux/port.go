package vestmux

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for the vest controller's
// serial link. This abstraction enables unit testing without real hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortMode defines serial port configuration parameters.
type PortMode struct {
	BaudRate int
	DataBits int
}

// DefaultPortMode returns the default mode for the vest controller.
func DefaultPortMode() *PortMode {
	return &PortMode{
		BaudRate: 115200,
		DataBits: 8,
	}
}

// TimeoutPorter extends Porter with a read timeout. Optional; real serial
// ports implement it, in-memory test ports may not.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}
