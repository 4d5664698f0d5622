package hotkey

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func rawEvent(typ, code uint16, value int32) []byte {
	b := make([]byte, inputEventSize)
	binary.LittleEndian.PutUint16(b[16:], typ)
	binary.LittleEndian.PutUint16(b[18:], code)
	binary.LittleEndian.PutUint32(b[20:], uint32(value))
	return b
}

func TestDecodeKeyEvents(t *testing.T) {
	var buf []byte
	buf = append(buf, rawEvent(evKey, 57, 1)...)
	buf = append(buf, rawEvent(0, 0, 0)...) // EV_SYN
	buf = append(buf, rawEvent(evKey, 57, 0)...)
	buf = append(buf, 0, 0, 0) // partial trailing event

	evs := decodeKeyEvents(buf)
	want := []keyEvent{{57, 1}, {57, 0}}
	if len(evs) != len(want) {
		t.Fatalf("events = %+v", evs)
	}
	for i := range want {
		if evs[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, evs[i], want[i])
		}
	}
}

func TestMatcher(t *testing.T) {
	combo, err := Parse("ctrl+shift+space")
	if err != nil {
		t.Fatal(err)
	}
	m := newMatcher(combo)
	steps := []struct {
		ev   keyEvent
		want edge
	}{
		{keyEvent{57, 1}, noEdge}, // no modifiers
		{keyEvent{57, 0}, noEdge},
		{keyEvent{29, 1}, noEdge}, // left ctrl
		{keyEvent{57, 1}, noEdge}, // shift missing
		{keyEvent{57, 0}, noEdge},
		{keyEvent{54, 1}, noEdge}, // right shift
		{keyEvent{57, 1}, downEdge},
		{keyEvent{57, 2}, noEdge}, // autorepeat
		{keyEvent{57, 1}, noEdge}, // already down
		{keyEvent{57, 0}, upEdge},
		{keyEvent{56, 1}, noEdge}, // alt too
		{keyEvent{57, 1}, noEdge},
		{keyEvent{57, 0}, noEdge},
	}
	for i, s := range steps {
		if got := m.feed(s.ev); got != s.want {
			t.Errorf("step %d %+v: edge %d, want %d", i, s.ev, got, s.want)
		}
	}
}

func TestMatcherReleaseAfterModifiersUp(t *testing.T) {
	combo, _ := Parse("super+f9")
	m := newMatcher(combo)
	m.feed(keyEvent{125, 1})
	if m.feed(keyEvent{67, 1}) != downEdge {
		t.Fatal("combo not detected")
	}
	m.feed(keyEvent{125, 0})
	if m.feed(keyEvent{67, 0}) != upEdge {
		t.Error("release lost once the modifier lifted first")
	}
}

func TestKeyboards(t *testing.T) {
	dev, sys := t.TempDir(), t.TempDir()
	for name, caps := range map[string]string{
		"event0": "120013 0 0 0 0 0 0 0 0 0 e080ffdf01cfffff fffffffffffffffe",
		"event1": "4", // power button
		"event2": "",  // no caps file written below
		"mouse0": "120013 0 0 0 0 0 0 0 0 0 e080ffdf01cfffff fffffffffffffffe",
	} {
		if err := os.WriteFile(filepath.Join(dev, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
		if caps == "" {
			continue
		}
		dir := filepath.Join(sys, name, "device", "capabilities")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "key"), []byte(caps+"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := keyboards(dev, sys)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != filepath.Join(dev, "event0") {
		t.Errorf("keyboards = %v", got)
	}
}
