package beep

import (
	"math"
	"testing"
)

func TestTick(t *testing.T) {
	s := tick(1000, 0.1, 0.5, 40, 2)
	if len(s) != 4410*2 {
		t.Fatalf("len = %d, want %d", len(s), 4410*2)
	}
	for i := 0; i < len(s); i += 2 {
		if s[i] != s[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
	}
	peak := 0
	for _, v := range s {
		peak = max(peak, int(math.Abs(float64(v))))
	}
	limit := 32767 * 0.5
	if peak == 0 || peak > int(limit)+1 {
		t.Errorf("peak = %d, want within volume", peak)
	}
	// decays
	head, tail := absSum(s[:400]), absSum(s[len(s)-400:])
	if tail >= head {
		t.Errorf("tail energy %d >= head %d", tail, head)
	}
}

func absSum(s []int16) int {
	n := 0
	for _, v := range s {
		if v < 0 {
			n -= int(v)
		} else {
			n += int(v)
		}
	}
	return n
}

func TestRenderRepeat(t *testing.T) {
	one := tick(errorCue.freq, errorCue.duration, errorCue.volume, errorCue.decay, 1)
	two := errorCue.render(1, 0)
	gap := int(float64(sampleRate) * errorCue.gap)
	if len(two) != 2*len(one)+gap {
		t.Fatalf("len = %d, want %d", len(two), 2*len(one)+gap)
	}
	for _, v := range two[len(one) : len(one)+gap] {
		if v != 0 {
			t.Fatal("gap is not silent")
		}
	}
}

func TestRenderPadsToMinimum(t *testing.T) {
	pcm := startCue.render(2, 0.2)
	if want := int(sampleRate*0.2) * 2; len(pcm) != want {
		t.Fatalf("len = %d, want %d", len(pcm), want)
	}
	if pcm[len(pcm)-1] != 0 {
		t.Error("padding is not silent")
	}
}

func TestCacheReusesRender(t *testing.T) {
	c := newCache(1, 0)
	a, b := c.get(stopCue), c.get(stopCue)
	if len(a) == 0 || &a[0] != &b[0] {
		t.Error("cue rendered twice")
	}
	if len(c.get(startCue)) == len(a) {
		t.Error("distinct cues share a buffer length")
	}
}

func TestLittleEndian(t *testing.T) {
	b := littleEndian([]int16{1, -2, 0x1234})
	want := []byte{0x01, 0x00, 0xfe, 0xff, 0x34, 0x12}
	if string(b) != string(want) {
		t.Errorf("bytes = % x, want % x", b, want)
	}
}

type recordingPlayer struct{ played []cue }

func (r *recordingPlayer) play(c cue) { r.played = append(r.played, c) }

func TestFeedbackRoutesCues(t *testing.T) {
	rec := &recordingPlayer{}
	outOnce.Do(func() {})
	prev := out
	out = rec
	defer func() { out = prev }()

	var fb Feedback
	fb.Started()
	fb.Stopped()
	fb.Failed()
	want := []cue{startCue, stopCue, errorCue}
	if len(rec.played) != len(want) {
		t.Fatalf("played %d cues, want %d", len(rec.played), len(want))
	}
	for i := range want {
		if rec.played[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, rec.played[i], want[i])
		}
	}

	Disable()
	defer disabled.Store(false)
	if Enabled() {
		t.Error("still enabled")
	}
	fb.Started()
	if len(rec.played) != len(want) {
		t.Error("cue played while disabled")
	}
}
