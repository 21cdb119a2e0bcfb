package vestmux

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haptic-bench/apparent.motion/internal/render"
)

func TestSendEncodesFrameLine(t *testing.T) {
	port := NewTestablePort()
	mux := NewVestMux(port)

	err := mux.Send(render.GroupVest, []int{0, 42, 100, 7}, 40)
	require.NoError(t, err)

	lines := port.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "F,vest,40,0,42,100,7", lines[0])
}

func TestSendClampsIntensitiesToDeviceRange(t *testing.T) {
	port := NewTestablePort()
	mux := NewVestMux(port)

	require.NoError(t, mux.Send(render.GroupVest, []int{-5, 150, 60}, 40))

	lines := port.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "F,vest,40,0,100,60", lines[0])
}

func TestSendEmptyFrame(t *testing.T) {
	port := NewTestablePort()
	mux := NewVestMux(port)

	require.NoError(t, mux.Send(render.GroupVest, nil, 20))
	lines := port.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "F,vest,20", lines[0])
}

func TestSendCommandAppendsNewline(t *testing.T) {
	port := NewTestablePort()
	mux := NewVestMux(port)

	require.NoError(t, mux.SendCommand("PING"))
	require.NoError(t, mux.SendCommand("RESET\n"))

	assert.Equal(t, []string{"C,PING", "C,RESET"}, port.Lines())
	assert.Equal(t, 2, port.WriteCalls)
}

func TestSendPropagatesWriteError(t *testing.T) {
	port := NewTestablePort()
	port.WriteError = errors.New("device unplugged")
	mux := NewVestMux(port)

	err := mux.Send(render.GroupVest, []int{1, 2, 3}, 40)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestShortWriteFails(t *testing.T) {
	port := NewTestablePort()
	port.ShortWrite = true
	mux := NewVestMux(port)

	err := mux.Send(render.GroupVest, []int{1}, 40)
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestWriteLatencySerializesWriters(t *testing.T) {
	port := NewTestablePort()
	port.WriteLatency = 5 * time.Millisecond
	mux := NewVestMux(port)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- mux.Send(render.GroupVest, []int{1, 2}, 40)
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	// Concurrent sends must interleave at line granularity only.
	for _, l := range port.Lines() {
		assert.Equal(t, "F,vest,40,1,2", l)
	}
	assert.Equal(t, 2, port.WriteCalls)
}

func TestMonitorReturnsOnContextCancel(t *testing.T) {
	mux := NewMockVestMux("")
	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() { errChan <- mux.Monitor(ctx) }()
	cancel()

	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancellation")
	}
}

func TestMonitorConsumesStatusLines(t *testing.T) {
	port := NewTestablePort()
	port.ReadBuffer.WriteString("A,1\nE,thermal cutoff\nA,2\n")
	mux := NewVestMux(port)

	// The scripted port hits EOF after the last line, so Monitor returns
	// a nil scanner error rather than blocking.
	err := mux.Monitor(context.Background())
	assert.NoError(t, err)
}

// The mock port must behave like a real idle serial line: once the
// scripted status output is drained, reads block rather than hitting EOF,
// so the monitor keeps running for the daemon's whole lifetime.
func TestMockMonitorOutlivesScriptedLines(t *testing.T) {
	mux := NewMockVestMux("A,1\nE,thermal cutoff\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- mux.Monitor(ctx) }()

	select {
	case err := <-errChan:
		t.Fatalf("Monitor returned after script drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancellation")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	port := NewTestablePort()
	port.CloseError = errors.New("close failed")
	mux := NewVestMux(port)

	assert.Error(t, mux.Close())
	assert.NoError(t, mux.Close())
	assert.True(t, port.Closed)
}

func TestMockVestMuxCountsWrites(t *testing.T) {
	mux := NewMockVestMux("")
	for i := 0; i < 3; i++ {
		require.NoError(t, mux.Send(render.GroupVest, []int{1, 2, 3}, 40))
	}
	require.NoError(t, mux.SendCommand("STATUS"))
	assert.Equal(t, 4, mux.port.WriteCount())

	require.NoError(t, mux.Close())
	assert.Error(t, mux.SendCommand("STATUS"))
}

func TestDisabledVestMuxIsInert(t *testing.T) {
	mux := NewDisabledVestMux()
	assert.NoError(t, mux.Send(render.GroupVest, []int{1}, 40))
	assert.NoError(t, mux.SendCommand("anything"))
	assert.NoError(t, mux.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mux.Monitor(ctx), context.Canceled)
}
