package vestmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// MockPort implements Porter for dev mode: frames written to it are
// discarded after counting, and an optional script feeds controller status
// lines to Monitor. Reads block once the script is drained, like a real
// idle port, so the monitor stays up until the port closes.
type MockPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mu         sync.Mutex
	writeCount int
	closed     bool
}

// NewMockVestMux creates a VestMux backed by a mock port. statusLines, if
// non-empty, are replayed once as controller output.
func NewMockVestMux(statusLines string) *VestMux[*MockPort] {
	pr, pw := io.Pipe()
	m := &MockPort{reader: pr, writer: pw}
	if statusLines != "" {
		go io.Copy(pw, bytes.NewBufferString(statusLines))
	}
	return NewVestMux(m)
}

func (m *MockPort) Read(p []byte) (int, error) {
	return m.reader.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("mock port closed")
	}
	m.writeCount++
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.writer.Close()
	return m.reader.Close()
}

// WriteCount reports how many frames/commands were written.
func (m *MockPort) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCount
}

// TestablePort implements Porter with configurable behaviour for tests:
// captured writes, injected errors and latency.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// WriteLatency adds a delay to each Write call.
	WriteLatency time.Duration

	// WriteError is returned by Write calls if set.
	WriteError error

	// ShortWrite truncates the reported write length by one byte.
	ShortWrite bool

	// CloseError is returned by Close if set.
	CloseError error

	// Closed indicates whether Close was called.
	Closed bool

	// WriteCalls records the number of Write calls.
	WriteCalls int
}

// NewTestablePort creates a TestablePort with empty buffers.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestablePort) Write(p []byte) (int, error) {
	if t.WriteLatency > 0 {
		time.Sleep(t.WriteLatency)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.WriteError != nil {
		return 0, t.WriteError
	}
	n, err := t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return t.CloseError
}

// Lines returns the captured writes split into lines.
func (t *TestablePort) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	raw := t.WriteBuffer.String()
	var lines []string
	for _, l := range bytes.Split([]byte(raw), []byte("\n")) {
		if len(l) > 0 {
			lines = append(lines, string(l))
		}
	}
	return lines
}
