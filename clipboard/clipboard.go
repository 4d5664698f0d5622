// Package clipboard reads and writes the system clipboard and injects text
// into the focused application.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cb "github.com/atotto/clipboard"
)

var (
	ErrUnsupported = errors.New("clipboard not available")

	// ErrNoKeyboard means the virtual keyboard could not be created.
	ErrNoKeyboard = errors.New("virtual keyboard unavailable")
)

// Interrupted reports an insertion abandoned because its context ended.
// Keys already sent stay sent; held modifiers are released.
type Interrupted struct {
	Sent, Total int
	Err         error
}

func (e *Interrupted) Error() string {
	return fmt.Sprintf("insertion interrupted after %d of %d keys: %v", e.Sent, e.Total, e.Err)
}

func (e *Interrupted) Unwrap() error { return e.Err }

func interrupted(ctx context.Context, sent, total int) error {
	if ctx.Err() == nil {
		return nil
	}
	return &Interrupted{Sent: sent, Total: total, Err: ctx.Err()}
}

// inject serializes clipboard swaps and key sequences; two overlapping
// insertions would interleave keys or restore the wrong clipboard.
var inject sync.Mutex

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

// pasteSettle is how long the clipboard keeps the injected text before the
// previous contents are put back.
const pasteSettle = 150 * time.Millisecond

// PasteText puts text on the clipboard, sends the paste shortcut and then
// restores whatever the clipboard held before. The previous contents are
// restored even when ctx ends part way.
func PasteText(ctx context.Context, text string) error {
	inject.Lock()
	defer inject.Unlock()
	return pasteLocked(ctx, text)
}

func pasteLocked(ctx context.Context, text string) (err error) {
	if err := interrupted(ctx, 0, 1); err != nil {
		return err
	}
	prev, readErr := Read()
	if err := Copy(text); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if readErr == nil {
		defer func() {
			if rerr := Copy(prev); rerr != nil && err == nil {
				err = fmt.Errorf("restore clipboard: %w", rerr)
			}
		}()
	}

	if err := interrupted(ctx, 0, 1); err != nil {
		return err
	}
	if err := sendPaste(ctx); err != nil {
		return fmt.Errorf("paste: %w", err)
	}

	t := time.NewTimer(pasteSettle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return interrupted(ctx, 1, 1)
	}
}

// Paste sends the platform paste shortcut.
func Paste(ctx context.Context) error {
	inject.Lock()
	defer inject.Unlock()
	return sendPaste(ctx)
}
