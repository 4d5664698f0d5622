package transcriber

import (
	"context"
	"sync"
	"time"

	"hotscribe/transcript"
)

// FakeEngine returns a canned result or error. It records calls and the
// highest number of overlapping calls it has seen.
type FakeEngine struct {
	result     transcript.Result
	err        error
	delay      time.Duration
	concurrent bool

	mu     sync.Mutex
	calls  int
	active int
	peak   int
	last   Request
}

func NewFake(text string, err error) *FakeEngine {
	return &FakeEngine{
		result: transcript.Result{Text: text, Language: "en", LanguageConfidence: 0.9},
		err:    err,
	}
}

// NewFakeResult returns r verbatim from every call.
func NewFakeResult(r transcript.Result) *FakeEngine {
	return &FakeEngine{result: r}
}

// WithDelay makes every call block for d or until its context ends.
func (f *FakeEngine) WithDelay(d time.Duration) *FakeEngine {
	f.delay = d
	return f
}

func (f *FakeEngine) WithConcurrent(ok bool) *FakeEngine {
	f.concurrent = ok
	return f
}

func (f *FakeEngine) Name() string     { return "fake" }
func (f *FakeEngine) Concurrent() bool { return f.concurrent }

func (f *FakeEngine) Transcribe(ctx context.Context, req Request) (transcript.Result, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	f.peak = max(f.peak, f.active)
	f.last = req
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return transcript.Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return transcript.Result{}, f.err
	}
	return f.result, nil
}

func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeEngine) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *FakeEngine) LastRequest() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
