package clipboard

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// linux/uinput.h
const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiDevCreate = 0x5501
)

// linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

// deviceName is how the virtual keyboard shows up in /sys/class/input.
const deviceName = "hotscribe-inject"

// chordPause lets the compositor register modifier state between the
// keys of the paste shortcut.
const chordPause = 5 * time.Millisecond

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type uinputUserDev struct {
	Name         [80]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// vkbd is a virtual keyboard. Each key transition is written together
// with its sync report so a reader never sees half an event.
type vkbd struct {
	w io.Writer
}

func (k *vkbd) key(code uint16, down bool) error {
	var v int32
	if down {
		v = 1
	}
	evs := [2]inputEvent{{Type: evKey, Code: code, Value: v}, {Type: evSyn}}
	return binary.Write(k.w, binary.LittleEndian, &evs)
}

// chord presses keys in order and releases them in reverse. If ctx ends
// between presses, the keys already down are still released so no
// modifier stays stuck.
func (k *vkbd) chord(ctx context.Context, pause time.Duration, keys ...uint16) error {
	down := make([]uint16, 0, len(keys))
	defer func() {
		for i := len(down) - 1; i >= 0; i-- {
			_ = k.key(down[i], false)
		}
	}()

	for _, c := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := k.key(c, true); err != nil {
			return err
		}
		down = append(down, c)
		if pause > 0 {
			time.Sleep(pause)
		}
	}
	for len(down) > 0 {
		last := down[len(down)-1]
		down = down[:len(down)-1]
		if err := k.key(last, false); err != nil {
			return err
		}
		if pause > 0 && len(down) > 0 {
			time.Sleep(pause)
		}
	}
	return nil
}

var (
	kbd     *vkbd
	kbdOnce sync.Once
	kbdErr  error
)

// Init creates the virtual keyboard once. Later calls return the first
// result.
func Init() error {
	kbdOnce.Do(func() {
		f, err := openUinput()
		if err != nil {
			kbdErr = fmt.Errorf("%w: %v", ErrNoKeyboard, err)
			return
		}
		kbd = &vkbd{w: f}
		// the compositor needs a moment to pick up the new device
		time.Sleep(200 * time.Millisecond)
	})
	return kbdErr
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func openUinput() (*os.File, error) {
	var path string
	for _, p := range []string{"/dev/uinput", "/dev/input/uinput"} {
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}
	if err := createDevice(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// createDevice registers a USB keyboard with every standard key, which
// is what udev needs to classify it as a keyboard.
func createDevice(f *os.File) error {
	for _, bit := range []uintptr{evKey, evSyn} {
		if err := ioctl(f, uiSetEvbit, bit); err != nil {
			return fmt.Errorf("UI_SET_EVBIT: %w", err)
		}
	}
	for code := uintptr(0); code < 256; code++ {
		if err := ioctl(f, uiSetKeybit, code); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}
	dev := uinputUserDev{Bustype: 0x03, Vendor: 0x1234, Product: 0x5678, Version: 1}
	copy(dev.Name[:], deviceName)
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		return fmt.Errorf("uinput setup: %w", err)
	}
	if err := ioctl(f, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func sendPaste(ctx context.Context) error {
	if err := Init(); err != nil {
		return err
	}
	if err := kbd.chord(ctx, chordPause, keyLeftCtrl, keyV); err != nil {
		if ierr := interrupted(ctx, 0, 1); ierr != nil {
			return ierr
		}
		return err
	}
	return nil
}

// evdevNode finds the /dev/input node the kernel created for name.
func evdevNode(name string) (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err == nil && strings.TrimSpace(string(data)) == name {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("%s evdev device not found", name)
}

// sawPaste reports whether a read of input_events holds both keys of the
// paste shortcut.
func sawPaste(buf []byte) (ctrl, v bool) {
	const size = 24
	for i := 0; i+size <= len(buf); i += size {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		switch binary.LittleEndian.Uint16(buf[i+18:]) {
		case keyLeftCtrl:
			ctrl = true
		case keyV:
			v = true
		}
	}
	return ctrl, v
}

// Verify sends the paste shortcut through the virtual keyboard and reads
// it back from the kernel input layer.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	node, err := evdevNode(deviceName)
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(node)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", node, err)
	}
	defer evdev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := Paste(ctx); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type readback struct {
		buf []byte
		err error
	}
	ch := make(chan readback, 1)
	go func() {
		buf := make([]byte, 24*32)
		n, err := evdev.Read(buf)
		ch <- readback{buf[:max(n, 0)], err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if ctrl, v := sawPaste(r.buf); !ctrl || !v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", ctrl, v)
		}
		return fmt.Sprintf("Ctrl+V keystroke verified via %s", node), nil
	case <-ctx.Done():
		return "", errors.New("timed out waiting for keystroke events")
	}
}
