package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// evdev codes from linux/input-event-codes.h
var modifierCodes = map[uint16]Modifier{
	29: ModCtrl, 97: ModCtrl,
	42: ModShift, 54: ModShift,
	56: ModAlt, 100: ModAlt,
	125: ModSuper, 126: ModSuper,
}

var keyCodes = map[string]uint16{
	"a": 30, "b": 48, "c": 46, "d": 32, "e": 18, "f": 33, "g": 34,
	"h": 35, "i": 23, "j": 36, "k": 37, "l": 38, "m": 50, "n": 49,
	"o": 24, "p": 25, "q": 16, "r": 19, "s": 31, "t": 20, "u": 22,
	"v": 47, "w": 17, "x": 45, "y": 21, "z": 44,
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,
	"space": 57,
}

const (
	evKey = 1

	// struct input_event on 64-bit: timeval(16) type(2) code(2) value(4)
	inputEventSize = 24
)

var errNoKeyboards = errors.New("no keyboard devices found (is user in 'input' group?)")

type keyEvent struct {
	code  uint16
	value int32 // 0 release, 1 press, 2 autorepeat
}

// decodeKeyEvents extracts EV_KEY events from a read of whole input_events.
func decodeKeyEvents(buf []byte) []keyEvent {
	var evs []keyEvent
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		evs = append(evs, keyEvent{
			code:  binary.LittleEndian.Uint16(buf[i+18:]),
			value: int32(binary.LittleEndian.Uint32(buf[i+20:])),
		})
	}
	return evs
}

type edge int

const (
	noEdge edge = iota
	downEdge
	upEdge
)

// matcher tracks one keyboard's modifier state and reports when the
// combo goes down or comes back up. Autorepeat never produces an edge.
type matcher struct {
	combo Combo
	code  uint16
	mods  map[uint16]bool
	down  bool
}

func newMatcher(c Combo) *matcher {
	return &matcher{combo: c, code: keyCodes[c.Key], mods: make(map[uint16]bool)}
}

func (m *matcher) feed(ev keyEvent) edge {
	if _, ok := modifierCodes[ev.code]; ok {
		switch ev.value {
		case 1:
			m.mods[ev.code] = true
		case 0:
			delete(m.mods, ev.code)
		}
		return noEdge
	}
	if ev.code != m.code {
		return noEdge
	}
	switch {
	case ev.value == 1 && !m.down && m.exactMods():
		m.down = true
		return downEdge
	case ev.value == 0 && m.down:
		m.down = false
		return upEdge
	}
	return noEdge
}

// exactMods reports whether exactly the combo's modifiers are held.
func (m *matcher) exactMods() bool {
	held := make(map[Modifier]bool, len(m.mods))
	for code := range m.mods {
		held[modifierCodes[code]] = true
	}
	if len(held) != len(m.combo.Mods) {
		return false
	}
	for _, mod := range m.combo.Mods {
		if !held[mod] {
			return false
		}
	}
	return true
}

// evdevHotkey reads every keyboard under /dev/input directly, so it works
// on both X11 and Wayland without a compositor grab.
type evdevHotkey struct {
	combo   Combo
	keydown chan struct{}
	keyup   chan struct{}

	files []*os.File
	stop  chan struct{}
	once  sync.Once
}

func New(combo Combo) Hotkey {
	return &evdevHotkey{
		combo:   combo,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	paths, err := keyboards("/dev/input", "/sys/class/input")
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(paths) == 0 {
		return errNoKeyboards
	}

	h.stop = make(chan struct{})
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.watch(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

func (h *evdevHotkey) watch(f *os.File) {
	m := newMatcher(h.combo)
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		select {
		case <-h.stop:
			return
		default:
		}
		for _, ev := range decodeKeyEvents(buf[:n]) {
			switch m.feed(ev) {
			case downEdge:
				notify(h.keydown)
			case upEdge:
				notify(h.keyup)
			}
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Unregister closes the device files, which unblocks the readers.
func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

// keyboards lists eventN nodes under devDir whose key capability bitmap in
// sysDir is wide enough to be a keyboard rather than a power button.
func keyboards(devDir, sysDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join(sysDir, name, "device", "capabilities", "key"))
		if err != nil || len(strings.TrimSpace(string(caps))) <= 10 {
			continue
		}
		paths = append(paths, filepath.Join(devDir, name))
	}
	return paths, nil
}

func Diagnose() (string, error) {
	paths, err := keyboards("/dev/input", "/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(paths) == 0 {
		return "", errNoKeyboards
	}
	for _, p := range paths {
		if f, err := os.Open(p); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(paths), p), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(paths))
}
