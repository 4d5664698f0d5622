package audio

import (
	"bytes"
	"strings"
	"testing"
)

func TestPickKey(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		cursor, n  int
		wantCursor int
		wantAction pickAction
	}{
		{"down arrow", []byte{0x1b, '[', 'B'}, 0, 3, 1, pickNone},
		{"up arrow", []byte{0x1b, '[', 'A'}, 2, 3, 1, pickNone},
		{"up clamps", []byte{0x1b, '[', 'A'}, 0, 3, 0, pickNone},
		{"down clamps", []byte("j"), 2, 3, 2, pickNone},
		{"vim up", []byte("k"), 1, 3, 0, pickNone},
		{"enter", []byte{'\r'}, 1, 3, 1, pickConfirm},
		{"ctrl+c", []byte{3}, 1, 3, 1, pickCancel},
		{"q", []byte("q"), 0, 3, 0, pickCancel},
		{"other key", []byte("x"), 1, 3, 1, pickNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, action := pickKey(tt.buf, tt.cursor, tt.n)
			if cursor != tt.wantCursor || action != tt.wantAction {
				t.Errorf("pickKey = (%d, %d), want (%d, %d)", cursor, action, tt.wantCursor, tt.wantAction)
			}
		})
	}
}

func TestIndexOf(t *testing.T) {
	devices := []DeviceInfo{{Name: "Built-in Microphone"}, {Name: "AirPods Pro"}, {Name: "USB Audio"}}
	tests := map[string]int{
		"":        0,
		"usb":     2,
		"AIRPODS": 1,
		"missing": 0,
	}
	for name, want := range tests {
		if got := indexOf(devices, name); got != want {
			t.Errorf("indexOf(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestPrintDevices(t *testing.T) {
	ctx := NewFakeContextPCM(nil, false)
	ctx.DeviceList = []DeviceInfo{{ID: "0", Name: "Built-in Microphone"}, {ID: "1", Name: "AirPods Pro"}}

	var buf bytes.Buffer
	if err := PrintDevices(&buf, ctx); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if strings.Contains(lines[0], btWarning) || !strings.Contains(lines[1], btWarning) {
		t.Errorf("bluetooth flag misplaced: %q", lines)
	}
}
