package hotkey

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"ctrl+shift+space", "ctrl+shift+space", true},
		{"Shift+Ctrl+Space", "ctrl+shift+space", true},
		{"F9", "f9", true},
		{"alt+f12", "alt+f12", true},
		{"cmd+option+r", "alt+super+r", true},
		{"ctrl+ctrl+a", "ctrl+a", true},
		{"super+0", "super+0", true},
		{"ctrl+shift", "", false},
		{"ctrl++a", "", false},
		{"a+b", "", false},
		{"f13", "", false},
		{"f0", "", false},
		{"hyper+a", "", false},
		{"", "", false},
	} {
		c, err := Parse(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("Parse(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && c.String() != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, c.String(), tt.want)
		}
	}
}

func TestComboHas(t *testing.T) {
	c, err := Parse("ctrl+shift+space")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Has(ModCtrl) || !c.Has(ModShift) || c.Has(ModAlt) {
		t.Errorf("modifiers = %v", c.Mods)
	}
}

func waitToggle(t *testing.T, tg *Toggler) {
	t.Helper()
	select {
	case <-tg.Toggles():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for toggle")
	}
}

func expectNoToggle(t *testing.T, tg *Toggler, wait time.Duration) {
	t.Helper()
	select {
	case <-tg.Toggles():
		t.Fatal("unexpected toggle")
	case <-time.After(wait):
	}
}

func TestTogglerEmitsPerPress(t *testing.T) {
	fk := registeredFake(t)
	tg := NewToggler(fk, 0)
	defer tg.Close()

	for range 3 {
		fk.SimPress()
		waitToggle(t, tg)
	}
}

func TestTogglerCoalescesRepeats(t *testing.T) {
	fk := registeredFake(t)
	window := 100 * time.Millisecond
	tg := NewToggler(fk, window)
	defer tg.Close()

	fk.SimKeydown()
	waitToggle(t, tg)

	// key repeat inside the window
	fk.SimKeydown()
	fk.SimKeydown()
	fk.SimKeyup()
	expectNoToggle(t, tg, 30*time.Millisecond)

	time.Sleep(window)
	fk.SimPress()
	waitToggle(t, tg)
}

func TestTogglerKeyupOnly(t *testing.T) {
	fk := registeredFake(t)
	tg := NewToggler(fk, 0)
	defer tg.Close()

	fk.SimKeyup()
	fk.SimKeyup()
	expectNoToggle(t, tg, 30*time.Millisecond)
}

func TestTogglerClose(t *testing.T) {
	fk := registeredFake(t)
	tg := NewToggler(fk, DefaultDebounce)

	done := make(chan struct{})
	go func() {
		tg.Close()
		tg.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

func registeredFake(t *testing.T) *FakeHotkey {
	t.Helper()
	fk := NewFake()
	if err := fk.Register(); err != nil {
		t.Fatal(err)
	}
	return fk
}

func TestFakeDeliversOnlyWhileRegistered(t *testing.T) {
	fk := NewFake()
	if fk.SimPress() {
		t.Fatal("press delivered before Register")
	}

	fk.RegisterErr = errors.New("grab failed")
	if err := fk.Register(); err == nil {
		t.Fatal("RegisterErr ignored")
	}
	fk.RegisterErr = nil
	if err := fk.Register(); err != nil {
		t.Fatal(err)
	}

	tg := NewToggler(fk, 0)
	defer tg.Close()
	if !fk.SimPress() {
		t.Fatal("press dropped while registered")
	}
	waitToggle(t, tg)

	fk.Unregister()
	if fk.SimKeydown() {
		t.Error("keydown delivered after Unregister")
	}
	if got := fk.Presses(); got != 1 {
		t.Errorf("Presses = %d, want 1", got)
	}
}
