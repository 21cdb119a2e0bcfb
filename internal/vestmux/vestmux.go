// Package vestmux provides an abstraction over the vest controller's serial
// link: it encodes rendered intensity frames onto the wire, serializes
// writes from multiple callers onto the single port, and monitors the
// controller's status lines.
//
// Wire protocol (ASCII lines, newline terminated):
//
//	F,<group>,<duration_ms>,<v0>,<v1>,...,<vN-1>   one intensity frame
//	C,<command>                                    raw controller command
//
// The controller answers with "A,<seq>" acknowledgements and "E,<message>"
// fault lines.
package vestmux

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/haptic-bench/apparent.motion/internal/render"
	"github.com/haptic-bench/apparent.motion/internal/units"
)

var ErrWriteFailed = fmt.Errorf("failed to write to vest serial port")

// VestMux is a generic multiplexer over a vest controller port. The type
// parameter fixes the concrete port so tests can reach mock internals.
type VestMux[T Porter] struct {
	port    T
	writeMu sync.Mutex

	closingMu sync.Mutex
	closing   bool
}

// Muxer is the interface consumed by the daemon and the API layer.
type Muxer interface {
	render.Sink
	// SendCommand writes a raw controller command to the port.
	SendCommand(command string) error
	// Monitor reads controller status lines until the context ends,
	// logging fault lines.
	Monitor(ctx context.Context) error
	// Close closes the underlying port.
	Close() error
}

// NewVestMux creates a VestMux backed by the given port.
func NewVestMux[T Porter](port T) *VestMux[T] {
	return &VestMux[T]{port: port}
}

// Send encodes one intensity frame and writes it to the port as a single
// line. Values are clamped to the device range first; the controller
// answers an out-of-range write with a fault line and drops the frame.
// It implements render.Sink.
func (m *VestMux[T]) Send(group render.PositionGroup, intensities []int, durationMs int) error {
	var b strings.Builder
	b.Grow(16 + 4*len(intensities))
	b.WriteString("F,")
	b.WriteString(string(group))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(durationMs))
	for _, v := range intensities {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(units.ClampIntensity(v)))
	}
	b.WriteByte('\n')
	return m.writeLine(b.String())
}

// SendCommand sends a raw command line to the controller.
func (m *VestMux[T]) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	return m.writeLine("C," + command)
}

func (m *VestMux[T]) writeLine(line string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	n, err := m.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads status lines from the controller and logs faults. It
// returns when the context is cancelled or the port read fails.
func (m *VestMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer loop
	// can await both lines and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErrChan:
			return err
		case line, ok := <-lineChan:
			if !ok {
				return scan.Err()
			}
			if strings.HasPrefix(line, "E,") {
				log.Printf("vest controller fault: %s", strings.TrimPrefix(line, "E,"))
			}
		}
	}
}

// Close closes the underlying port. Further writes fail with the port's
// closed error.
func (m *VestMux[T]) Close() error {
	m.closingMu.Lock()
	if m.closing {
		m.closingMu.Unlock()
		return nil
	}
	m.closing = true
	m.closingMu.Unlock()
	return m.port.Close()
}
