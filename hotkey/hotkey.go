// Package hotkey turns a global key combination into toggle events.
package hotkey

import (
	"fmt"
	"slices"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Modifier int

const (
	ModCtrl Modifier = iota
	ModShift
	ModAlt
	ModSuper
)

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"win":     ModSuper,
}

func (m Modifier) String() string {
	switch m {
	case ModCtrl:
		return "ctrl"
	case ModShift:
		return "shift"
	case ModAlt:
		return "alt"
	case ModSuper:
		return "super"
	}
	return fmt.Sprintf("mod(%d)", int(m))
}

// Combo is a set of modifiers plus one key, e.g. ctrl+shift+space.
type Combo struct {
	Mods []Modifier
	Key  string
}

func (c Combo) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, m.String())
	}
	return strings.Join(append(parts, c.Key), "+")
}

func (c Combo) Has(m Modifier) bool {
	return slices.Contains(c.Mods, m)
}

// Parse reads a combo such as "ctrl+shift+space" or "F9". Modifiers are
// sorted and deduplicated; exactly one non-modifier key is required.
func Parse(s string) (Combo, error) {
	var c Combo
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty key", s)
		}
		if m, ok := modifierNames[part]; ok {
			if !c.Has(m) {
				c.Mods = append(c.Mods, m)
			}
			continue
		}
		if !validKey(part) {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, part)
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("hotkey %q: more than one key", s)
		}
		c.Key = part
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: no key", s)
	}
	slices.Sort(c.Mods)
	return c, nil
}

func validKey(k string) bool {
	switch {
	case k == "space":
		return true
	case len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9'):
		return true
	case len(k) >= 2 && k[0] == 'f':
		n := 0
		for _, ch := range k[1:] {
			if ch < '0' || ch > '9' {
				return false
			}
			n = n*10 + int(ch-'0')
		}
		return n >= 1 && n <= 12
	}
	return false
}
