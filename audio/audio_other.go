//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes miniaudio with its platform default backend.
func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: malgo: %v", ErrDeviceUnavailable, err)
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for _, d := range infos {
		devices = append(devices, DeviceInfo{ID: hex.EncodeToString(d.ID[:]), Name: d.Name()})
	}
	return devices, nil
}

// deviceID decodes the hex ID produced by Devices.
func deviceID(d *DeviceInfo) (*malgo.DeviceID, error) {
	raw, err := hex.DecodeString(d.ID)
	if err != nil {
		return nil, fmt.Errorf("device %q: bad id: %w", d.Name, err)
	}
	var id malgo.DeviceID
	copy(id[:], raw)
	return &id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, cfg CaptureConfig) (CaptureDevice, error) {
	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = cfg.Channels
	dc.SampleRate = cfg.SampleRate
	if device != nil {
		id, err := deviceID(device)
		if err != nil {
			return nil, err
		}
		dc.Capture.DeviceID = id.Pointer()
	}

	c := &malgoCapture{label: deviceLabel(device, defaultDeviceLabel)}
	dev, err := malgo.InitDevice(m.ctx.Context, dc, malgo.DeviceCallbacks{Data: c.onFrames})
	if err != nil {
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) Close() {
	_ = m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	callbackSlot

	device *malgo.Device
	label  string

	closeOnce sync.Once
}

// onFrames runs on the miniaudio thread. The input buffer is reused after
// it returns, so it is copied first.
func (c *malgoCapture) onFrames(_, in []byte, frames uint32) {
	if !c.listening() {
		return
	}
	c.emit(append([]byte(nil), in...), frames)
}

func (c *malgoCapture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("malgo start: %w", err)
	}
	return nil
}

func (c *malgoCapture) Stop() { _ = c.device.Stop() }

func (c *malgoCapture) Close() {
	c.closeOnce.Do(c.device.Uninit)
}

func (c *malgoCapture) DeviceName() string { return c.label }
