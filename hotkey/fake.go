package hotkey

import "sync"

// FakeHotkey stands in for the OS hotkey in tests and the stdin test mode.
// Like the real backends it delivers nothing until registered.
type FakeHotkey struct {
	// RegisterErr, when set, is returned by Register.
	RegisterErr error

	keydown chan struct{}
	keyup   chan struct{}

	mu         sync.Mutex
	registered bool
	presses    int
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	f.registered = true
	f.mu.Unlock()
	return nil
}

func (f *FakeHotkey) Unregister() {
	f.mu.Lock()
	f.registered = false
	f.mu.Unlock()
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

// SimKeydown reports whether the event was delivered.
func (f *FakeHotkey) SimKeydown() bool {
	if !f.live() {
		return false
	}
	f.keydown <- struct{}{}
	f.mu.Lock()
	f.presses++
	f.mu.Unlock()
	return true
}

func (f *FakeHotkey) SimKeyup() bool {
	if !f.live() {
		return false
	}
	f.keyup <- struct{}{}
	return true
}

// SimPress sends a full keydown/keyup pair.
func (f *FakeHotkey) SimPress() bool {
	return f.SimKeydown() && f.SimKeyup()
}

// Presses counts delivered keydowns.
func (f *FakeHotkey) Presses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presses
}
