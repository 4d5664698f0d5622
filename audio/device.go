package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const btWarning = "[lower audio quality]"

// PrintDevices writes one line per input device, flagging Bluetooth inputs.
func PrintDevices(w io.Writer, ctx Context) error {
	devices, err := ctx.Devices()
	if err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no capture devices found")
		return nil
	}
	for i, d := range devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = "  " + btWarning
		}
		fmt.Fprintf(w, "%2d  %s%s\n", i, d.Name, tag)
	}
	return nil
}

var ErrSelectionCanceled = errors.New("device selection canceled")

type pickAction int

const (
	pickNone pickAction = iota
	pickConfirm
	pickCancel
)

// pickKey applies one read from a raw terminal to the cursor.
func pickKey(buf []byte, cursor, n int) (int, pickAction) {
	switch {
	case len(buf) == 1:
		switch buf[0] {
		case '\r', '\n':
			return cursor, pickConfirm
		case 3, 'q': // Ctrl+C
			return cursor, pickCancel
		case 'j':
			cursor++
		case 'k':
			cursor--
		}
	case len(buf) == 3 && buf[0] == 0x1b && buf[1] == '[':
		switch buf[2] {
		case 'A':
			cursor--
		case 'B':
			cursor++
		}
	}
	return min(max(cursor, 0), n-1), pickNone
}

// indexOf returns the first device whose name contains name, or 0.
func indexOf(devices []DeviceInfo, name string) int {
	if name == "" {
		return 0
	}
	want := strings.ToLower(name)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return i
		}
	}
	return 0
}

// SelectDevice presents an interactive device picker, starting at the
// device matching current. With a single device it returns that device
// without prompting.
func SelectDevice(ctx Context, current string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := indexOf(devices, current)
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (↑/↓, Enter to confirm, q to cancel):\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if IsBluetooth(d.Name) {
				tag = " \x1b[33m" + btWarning + "\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, tag)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		var action pickAction
		cursor, action = pickKey(buf[:n], cursor, len(devices))
		switch action {
		case pickConfirm:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case pickCancel:
			fmt.Print("\r\n")
			return nil, ErrSelectionCanceled
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}
