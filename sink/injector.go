package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hotscribe/clipboard"
	"hotscribe/log"
	"hotscribe/transcript"
)

type InjectMode string

const (
	InjectOff   InjectMode = "off"
	InjectType  InjectMode = "type"
	InjectPaste InjectMode = "paste"
)

func ParseInjectMode(s string) (InjectMode, error) {
	switch m := InjectMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", InjectOff:
		return InjectOff, nil
	case InjectType, InjectPaste:
		return m, nil
	default:
		return "", fmt.Errorf("unknown inject mode %q (use off, type, or paste)", s)
	}
}

// ErrInjectBusy means the previous insertion has not finished yet. The
// result is skipped rather than typed over the one still in progress.
var ErrInjectBusy = errors.New("previous insertion still running")

// Injector inserts result text into the application that has focus. At
// most one insertion runs at a time.
type Injector struct {
	mode   InjectMode
	insert func(context.Context, string) error
	slot   chan struct{}
}

func NewInjector(mode InjectMode) *Injector {
	insert := clipboard.PasteText
	if mode == InjectType {
		insert = clipboard.Type
	}
	return newInjector(mode, insert)
}

func newInjector(mode InjectMode, insert func(context.Context, string) error) *Injector {
	return &Injector{mode: mode, insert: insert, slot: make(chan struct{}, 1)}
}

func (i *Injector) Name() string { return "inject:" + string(i.mode) }

// Deliver skips error and empty results. The platform call runs on its own
// goroutine so a stuck input stack cannot hold the caller past ctx; that
// goroutine keeps the slot until it returns, and it stops between keys
// once ctx ends.
func (i *Injector) Deliver(ctx context.Context, r transcript.Result) error {
	if r.IsError() || !r.HasText() {
		return nil
	}
	text := strings.ToValidUTF8(r.Text, "")
	if i.mode == InjectType {
		text += " "
	}

	select {
	case i.slot <- struct{}{}:
	default:
		return fmt.Errorf("inject %s: %w", i.mode, ErrInjectBusy)
	}
	done := make(chan error, 1)
	go func() {
		var err error
		// the slot is free before the caller can observe the result
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("insert panicked: %v", p)
			}
			<-i.slot
			done <- err
		}()
		err = i.insert(ctx, text)
	}()

	select {
	case err := <-done:
		var ie *clipboard.Interrupted
		switch {
		case err == nil:
			return nil
		case errors.As(err, &ie):
			log.Warnf("inject %s: stopped after %d of %d keys", i.mode, ie.Sent, ie.Total)
			return ie.Err
		}
		return fmt.Errorf("inject %s: %w", i.mode, err)
	case <-ctx.Done():
		return ctx.Err()
	}
}
