// Package beep plays short cues when a session starts, stops or fails.
package beep

import (
	"math"
	"sync"
	"sync/atomic"

	"hotscribe/log"
)

const sampleRate = 44100

// cue describes one decaying sine burst. Repeat > 1 plays the burst again
// after gap seconds of silence.
type cue struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
	repeat   int
	gap      float64
}

var (
	startCue = cue{freq: 1200, duration: 0.03, volume: 0.5, decay: 60, repeat: 1}
	stopCue  = cue{freq: 900, duration: 0.05, volume: 0.5, decay: 40, repeat: 1}
	errorCue = cue{freq: 350, duration: 0.08, volume: 0.6, decay: 30, repeat: 2, gap: 0.05}
)

// player is the per-platform output device.
type player interface {
	play(c cue)
}

var (
	disabled atomic.Bool

	out     player
	outOnce sync.Once
)

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

// Init opens the output device ahead of the first cue. Failure leaves
// the package silent.
func Init() {
	outOnce.Do(func() {
		p, err := newPlayer()
		if err != nil {
			log.Warnf("beep: no output device: %v", err)
			return
		}
		out = p
	})
}

func play(c cue) {
	if disabled.Load() {
		return
	}
	Init()
	if out != nil {
		out.play(c)
	}
}

func PlayStart() { play(startCue) }
func PlayEnd()   { play(stopCue) }
func PlayError() { play(errorCue) }

// Feedback adapts the cues to the controller's milestones.
type Feedback struct{}

func (Feedback) Started() { PlayStart() }
func (Feedback) Stopped() { PlayEnd() }
func (Feedback) Failed()  { PlayError() }

// render returns interleaved PCM16 for c, padded with trailing silence
// up to minDur seconds.
func (c cue) render(channels int, minDur float64) []int16 {
	burst := tick(c.freq, c.duration, c.volume, c.decay, channels)
	gap := int(float64(sampleRate)*c.gap) * channels
	repeat := max(c.repeat, 1)

	pcm := make([]int16, 0, repeat*len(burst)+(repeat-1)*gap)
	for i := range repeat {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, burst...)
	}
	if want := int(float64(sampleRate)*minDur) * channels; len(pcm) < want {
		pcm = append(pcm, make([]int16, want-len(pcm))...)
	}
	return pcm
}

// tick renders an exponentially decaying sine, interleaved over channels.
func tick(freq, duration, volume, decay float64, channels int) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n*channels)
	for i := range n {
		t := float64(i) / sampleRate
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
		for ch := range channels {
			samples[i*channels+ch] = s
		}
	}
	return samples
}

func littleEndian(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// cache memoizes rendered cues for one output format.
type cache struct {
	mu       sync.Mutex
	channels int
	minDur   float64
	pcm      map[cue][]int16
}

func newCache(channels int, minDur float64) *cache {
	return &cache{channels: channels, minDur: minDur, pcm: make(map[cue][]int16)}
}

func (c *cache) get(q cue) []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	pcm, ok := c.pcm[q]
	if !ok {
		pcm = q.render(c.channels, c.minDur)
		c.pcm[q] = pcm
	}
	return pcm
}
