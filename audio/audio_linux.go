//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

const pulseLatency = 0.05 // seconds

type pulseContext struct {
	client *pulse.Client
}

// NewContext connects to the PulseAudio (or PipeWire-pulse) server.
func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("hotscribe"))
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %v", ErrDeviceUnavailable, err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, cfg CaptureConfig) (CaptureDevice, error) {
	var source *pulse.Source
	if device != nil {
		s, err := p.client.SourceByID(device.ID)
		if err != nil {
			return nil, fmt.Errorf("pulse source %q: %w", device.Name, err)
		}
		source = s
	}
	return &pulseCapture{
		client: p.client,
		label:  deviceLabel(device, defaultDeviceLabel),
		opts:   recordOptions(cfg, source),
		frame:  max(int(cfg.Channels), 1),
	}, nil
}

func (p *pulseContext) Close() { p.client.Close() }

func recordOptions(cfg CaptureConfig, source *pulse.Source) []pulse.RecordOption {
	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(int(cfg.SampleRate)),
		pulse.RecordLatency(pulseLatency),
		pulse.RecordMono,
	}
	if cfg.Channels == 2 {
		opts[2] = pulse.RecordStereo
	}
	if source != nil {
		opts = append(opts, pulse.RecordSource(source))
	}
	return opts
}

// pcm16 packs samples little-endian into a fresh buffer the callback may keep.
func pcm16(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

type pulseCapture struct {
	callbackSlot

	client *pulse.Client
	label  string
	opts   []pulse.RecordOption
	frame  int // samples per frame

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (c *pulseCapture) write(buf []int16) (int, error) {
	if len(buf) > 0 && c.listening() {
		c.emit(pcm16(buf), uint32(len(buf)/c.frame))
	}
	return len(buf), nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	stream, err := c.client.NewRecord(pulse.Int16Writer(c.write), c.opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	c.stream = stream
	return nil
}

// Stop ends the stream. It is safe to call repeatedly.
func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream.Close()
	c.stream = nil
}

func (c *pulseCapture) Close() { c.Stop() }

func (c *pulseCapture) DeviceName() string { return c.label }
