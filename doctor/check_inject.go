package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"hotscribe/clipboard"
	"hotscribe/sink"
	"hotscribe/transcript"
)

const injectSample = "hotscribe doctor test"

func checkInjection(mode sink.InjectMode) bool {
	if mode == sink.InjectOff {
		fmt.Println("  SKIP: INJECT_MODE=off")
		return true
	}
	if err := clipboardRoundTrip(3 * time.Second); err != nil {
		return fail("%v", err)
	}
	fmt.Println("  PASS: clipboard write/read verified")

	msg, err := clipboard.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)

	fmt.Println("Focus on a text editor window...")
	for i := 5; i > 0; i-- {
		fmt.Printf("  %d...\n", i)
		time.Sleep(time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.NewInjector(mode).Deliver(ctx, transcript.Result{Text: injectSample}); err != nil {
		return fail("%v", err)
	}

	fmt.Println()
	if !confirm(os.Stdin, fmt.Sprintf("Did the text %q appear?", injectSample)) {
		return fail("injection not confirmed")
	}
	return pass("injection verified by user")
}

// clipboardRoundTrip writes a unique token and reads it back. Clipboard
// tools hang when no compositor is reachable, hence the deadline.
func clipboardRoundTrip(timeout time.Duration) error {
	token := fmt.Sprintf("hotscribe-doctor-%d", time.Now().UnixNano())
	errc := make(chan error, 1)
	go func() {
		if err := clipboard.Copy(token); err != nil {
			errc <- fmt.Errorf("clipboard write failed: %w", err)
			return
		}
		got, err := clipboard.Read()
		switch {
		case err != nil:
			errc <- fmt.Errorf("clipboard read failed: %w", err)
		case got != token:
			errc <- fmt.Errorf("clipboard mismatch: wrote %q, got %q", token, got)
		default:
			errc <- nil
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("clipboard timed out (clipboard tool hung - compositor not accessible?)")
	}
}
