package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hotscribe/metrics"
)

var (
	ErrDeviceUnavailable = errors.New("input device unavailable")
	ErrNoActiveCapture   = errors.New("no active capture")
	ErrEmptyCapture      = errors.New("no audio captured")
	ErrPayloadConsumed   = errors.New("audio payload already consumed")
)

// Payload is a finished recording. Its PCM is handed out once by Take.
type Payload struct {
	SampleRate uint32
	Channels   uint32
	Frames     uint64
	Dropped    uint64

	mu  sync.Mutex
	pcm []byte
}

func NewPayload(pcm []byte, sampleRate, channels uint32) *Payload {
	cfg := CaptureConfig{SampleRate: sampleRate, Channels: channels}
	return &Payload{
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     uint64(len(pcm) / cfg.bytesPerFrame()),
		pcm:        pcm,
	}
}

// Take transfers ownership of the PCM bytes to the caller. Later calls
// return ErrPayloadConsumed.
func (p *Payload) Take() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pcm == nil {
		return nil, ErrPayloadConsumed
	}
	pcm := p.pcm
	p.pcm = nil
	return pcm, nil
}

func (p *Payload) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.Frames) * time.Second / time.Duration(p.SampleRate)
}

// Recorder owns one capture device between Start and Stop and accumulates
// its frames.
type Recorder struct {
	ctx       Context
	config    CaptureConfig
	maxFrames int

	mu      sync.Mutex // guards device lifecycle
	device  *DeviceInfo
	capture CaptureDevice

	bufMu   sync.Mutex // guards ring; taken on the capture goroutine
	ring    *pcmRing
	dropped uint64

	totalDropped atomic.Uint64
}

// NewRecorder captures from device (nil = system default). A positive
// maxDuration bounds memory; older audio is discarded past that length.
func NewRecorder(ctx Context, device *DeviceInfo, config CaptureConfig, maxDuration time.Duration) *Recorder {
	maxFrames := 0
	if maxDuration > 0 {
		maxFrames = int(maxDuration.Seconds() * float64(config.SampleRate))
	}
	return &Recorder{
		ctx:       ctx,
		device:    device,
		config:    config,
		maxFrames: maxFrames,
	}
}

func (r *Recorder) Config() CaptureConfig { return r.config }

// SetDevice switches the input device. It fails while a capture is active.
func (r *Recorder) SetDevice(device *DeviceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture != nil {
		return fmt.Errorf("%w: capture in progress", ErrDeviceUnavailable)
	}
	r.device = device
	return nil
}

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device != nil {
		return r.device.Name
	}
	return "system default"
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}

// Dropped is the number of frames discarded by the ring buffer over the
// recorder's lifetime.
func (r *Recorder) Dropped() uint64 { return r.totalDropped.Load() }

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture != nil {
		return fmt.Errorf("%w: already capturing", ErrDeviceUnavailable)
	}

	dev, err := r.ctx.NewCapture(r.device, r.config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.bufMu.Lock()
	r.ring = newPCMRing(r.config.bytesPerFrame(), r.maxFrames)
	r.dropped = 0
	r.bufMu.Unlock()

	dev.SetCallback(r.onData)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	r.capture = dev
	return nil
}

func (r *Recorder) onData(data []byte, _ uint32) {
	frameSize := r.config.bytesPerFrame()
	data = data[:len(data)-len(data)%frameSize]

	r.bufMu.Lock()
	if r.ring == nil {
		r.bufMu.Unlock()
		return
	}
	n := r.ring.write(data)
	r.dropped += uint64(n)
	r.bufMu.Unlock()

	if n > 0 {
		r.totalDropped.Add(uint64(n))
		metrics.DroppedFrames.Add(float64(n))
	}
}

func (r *Recorder) Stop() (*Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture == nil {
		return nil, ErrNoActiveCapture
	}
	dev := r.capture
	r.capture = nil

	dev.ClearCallback()
	dev.Stop()
	dev.Close()

	r.bufMu.Lock()
	ring := r.ring
	dropped := r.dropped
	r.ring = nil
	r.bufMu.Unlock()

	if ring == nil || ring.frames() == 0 {
		return nil, ErrEmptyCapture
	}

	p := NewPayload(ring.bytes(), r.config.SampleRate, r.config.Channels)
	p.Dropped = dropped
	ring.reset()
	return p, nil
}
