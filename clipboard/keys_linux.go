package clipboard

import "context"

type keyStroke struct {
	code  uint16
	shift bool
}

// usLayout maps printable ASCII to evdev codes on a US keyboard.
var usLayout = func() map[byte]keyStroke {
	m := map[byte]keyStroke{
		' ': {57, false}, '\n': {28, false}, '\t': {15, false},
		'.': {52, false}, ',': {51, false}, '/': {53, false},
		';': {39, false}, '\'': {40, false}, '[': {26, false},
		']': {27, false}, '-': {12, false}, '=': {13, false},
		'\\': {43, false}, '`': {41, false},
		'_': {12, true}, '+': {13, true}, '{': {26, true},
		'}': {27, true}, '|': {43, true}, ':': {39, true},
		'"': {40, true}, '<': {51, true}, '>': {52, true},
		'?': {53, true}, '~': {41, true},
	}
	letters := []uint16{
		30, 48, 46, 32, 18, 33, 34, 35, 23, 36, // a-j
		37, 38, 50, 49, 24, 25, 16, 19, 31, 20, // k-t
		22, 47, 17, 45, 21, 44, // u-z
	}
	for i, code := range letters {
		m['a'+byte(i)] = keyStroke{code, false}
		m['A'+byte(i)] = keyStroke{code, true}
	}
	// the digit row: 1-9 then 0, shifted to !@#$%^&*()
	const shifted = "!@#$%^&*()"
	for i, d := range []byte("1234567890") {
		m[d] = keyStroke{uint16(2 + i), false}
		m[shifted[i]] = keyStroke{uint16(2 + i), true}
	}
	return m
}()

func charToKey(c byte) (code uint16, shift bool, ok bool) {
	k, ok := usLayout[c]
	return k.code, k.shift, ok
}

// Typeable reports whether every byte of text has a key on a US layout.
func Typeable(text string) bool {
	for i := 0; i < len(text); i++ {
		if _, ok := usLayout[text[i]]; !ok {
			return false
		}
	}
	return true
}

// Type sends text as keystrokes through the virtual keyboard. Text with
// characters outside the US layout goes through the clipboard instead.
// Typing stops between keys once ctx ends.
func Type(ctx context.Context, text string) error {
	if !Typeable(text) {
		return PasteText(ctx, text)
	}
	if err := Init(); err != nil {
		return err
	}
	inject.Lock()
	defer inject.Unlock()
	return typeKeys(ctx, kbd, text)
}

func typeKeys(ctx context.Context, k *vkbd, text string) error {
	for i := 0; i < len(text); i++ {
		if err := interrupted(ctx, i, len(text)); err != nil {
			return err
		}
		ks := usLayout[text[i]]
		keys := []uint16{ks.code}
		if ks.shift {
			keys = []uint16{keyLeftShift, ks.code}
		}
		if err := k.chord(ctx, 0, keys...); err != nil {
			if ierr := interrupted(ctx, i, len(text)); ierr != nil {
				return ierr
			}
			return err
		}
	}
	return nil
}
