package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// malgoPlayer keeps one mono playback device open and swaps the buffer it
// reads from. The data callback runs on the audio thread, so the buffer
// and cursor are atomics.
type malgoPlayer struct {
	ctx  *malgo.AllocatedContext
	cues *cache

	mu     sync.Mutex
	device *malgo.Device

	buf atomic.Pointer[[]byte]
	pos atomic.Uint32
}

func newPlayer() (player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	p := &malgoPlayer{ctx: ctx, cues: newCache(1, 0)}
	if err := p.open(); err != nil {
		ctx.Uninit()
		return nil, err
	}
	return p, nil
}

func (p *malgoPlayer) open() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{Data: p.fill})
	if err != nil {
		return err
	}
	p.device = dev
	return nil
}

// fill copies the pending cue into out and zeroes whatever is left.
func (p *malgoPlayer) fill(out, _ []byte, frames uint32) {
	want := frames * 2
	n := uint32(0)
	if src := p.buf.Load(); src != nil {
		pos := p.pos.Load()
		n = min(want, uint32(len(*src))-pos)
		copy(out[:n], (*src)[pos:pos+n])
		p.pos.Store(pos + n)
		if n == 0 {
			p.buf.Store(nil)
		}
	}
	clear(out[n:want])
}

func (p *malgoPlayer) play(c cue) {
	pcm := littleEndian(p.cues.get(c))
	if len(pcm) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.device.Stop()
	p.pos.Store(0)
	p.buf.Store(&pcm)
	if err := p.device.Start(); err == nil {
		return
	}
	// The device goes stale across sleep/wake; reopen once.
	p.device.Uninit()
	if err := p.open(); err != nil {
		p.buf.Store(nil)
		return
	}
	if err := p.device.Start(); err != nil {
		p.buf.Store(nil)
	}
}
