package doctor

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"

	"hotscribe/shutdown"
)

// tty remembers stdin's mode when the doctor starts. Hotkey backends and
// the injector can leave it raw, so steps that prompt restore it first.
type tty struct {
	mu    sync.Mutex
	fd    int
	state *term.State
}

var stdin tty

func (t *tty) save() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(t.fd) {
		return
	}
	if st, err := term.GetState(t.fd); err == nil {
		t.state = st
	}
}

func (t *tty) restore() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != nil {
		_ = term.Restore(t.fd, t.state)
	}
}

func resetTerminal() { stdin.restore() }

// onInterrupt restores the terminal and exits 1 on Ctrl+C.
func onInterrupt() {
	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	go func() {
		<-sig
		resetTerminal()
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	}()
}
