//go:build !linux

package clipboard

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

func Init() error {
	kbOnce.Do(func() {
		var err error
		if kb, err = keybd_event.NewKeyBonding(); err != nil {
			kbErr = fmt.Errorf("%w: %v", ErrNoKeyboard, err)
		}
	})
	return kbErr
}

// pasteChord is Cmd+V on macOS and Ctrl+V elsewhere.
func pasteChord() (name string, bind func(*keybd_event.KeyBonding)) {
	if runtime.GOOS == "darwin" {
		return "Cmd+V", func(k *keybd_event.KeyBonding) { k.HasSuper(true) }
	}
	return "Ctrl+V", func(k *keybd_event.KeyBonding) { k.HasCTRL(true) }
}

func sendPaste(ctx context.Context) error {
	if err := Init(); err != nil {
		return err
	}
	if err := interrupted(ctx, 0, 1); err != nil {
		return err
	}
	_, bind := pasteChord()
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	bind(&kb)
	return kb.Launching()
}

// Type has no per-key path here; text is pasted through the clipboard.
func Type(ctx context.Context, text string) error {
	return PasteText(ctx, text)
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	name, _ := pasteChord()
	return "keyboard event binding OK (" + name + ")", nil
}
