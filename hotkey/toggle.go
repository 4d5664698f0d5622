package hotkey

import (
	"sync"
	"time"

	"hotscribe/log"
)

const DefaultDebounce = 200 * time.Millisecond

// Toggler turns keydowns into toggle events. Keydowns that arrive within the
// debounce window of the last accepted one are dropped, which absorbs key
// repeat and bouncing switches.
type Toggler struct {
	toggles chan struct{}
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

func NewToggler(hk Hotkey, window time.Duration) *Toggler {
	if window < 0 {
		window = 0
	}
	t := &Toggler{
		toggles: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run(hk, window)
	return t
}

func (t *Toggler) Toggles() <-chan struct{} { return t.toggles }

func (t *Toggler) Close() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Toggler) run(hk Hotkey, window time.Duration) {
	defer close(t.done)
	var last time.Time
	for {
		select {
		case <-t.stop:
			return
		case <-hk.Keyup():
		case <-hk.Keydown():
			now := time.Now()
			if !last.IsZero() && now.Sub(last) < window {
				log.Debugf("hotkey: keydown %v after last toggle, ignored", now.Sub(last).Round(time.Millisecond))
				continue
			}
			last = now
			select {
			case t.toggles <- struct{}{}:
			case <-t.stop:
				return
			}
		}
	}
}
