package audio

import (
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	// SampleRate and Channels are the only format the transcription engines
	// accept.
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives interleaved little-endian PCM16 frames. It runs on
// the backend's capture goroutine and must not retain data.
type DataCallback func(data []byte, frameCount uint32)

// callbackSlot holds the capture's current DataCallback. Backends embed it
// and call emit from their audio thread.
type callbackSlot struct {
	cb atomic.Pointer[DataCallback]
}

func (s *callbackSlot) SetCallback(cb DataCallback) { s.cb.Store(&cb) }
func (s *callbackSlot) ClearCallback()              { s.cb.Store(nil) }

func (s *callbackSlot) listening() bool { return s.cb.Load() != nil }

func (s *callbackSlot) emit(data []byte, frames uint32) {
	if cb := s.cb.Load(); cb != nil {
		(*cb)(data, frames)
	}
}

const defaultDeviceLabel = "system default"

func deviceLabel(d *DeviceInfo, fallback string) string {
	if d != nil {
		return d.Name
	}
	return fallback
}

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

func (c CaptureConfig) bytesPerFrame() int {
	ch := int(c.Channels)
	if ch == 0 {
		ch = 1
	}
	return ch * BytesPerSample
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice returns the first device whose name contains name
// (case-insensitive). An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no device matching %q", ErrDeviceUnavailable, name)
}
