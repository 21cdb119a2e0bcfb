package vestmux

import (
	"context"

	"github.com/haptic-bench/apparent.motion/internal/render"
)

// DisabledVestMux is a no-op Muxer used when the vest hardware is absent
// (for --disable-vest). The daemon and API run normally; frames are
// discarded.
type DisabledVestMux struct{}

func NewDisabledVestMux() *DisabledVestMux {
	return &DisabledVestMux{}
}

func (d *DisabledVestMux) Send(render.PositionGroup, []int, int) error { return nil }

func (d *DisabledVestMux) SendCommand(string) error { return nil }

func (d *DisabledVestMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledVestMux) Close() error { return nil }
