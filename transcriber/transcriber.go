package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotscribe/audio"
	"hotscribe/metrics"
	"hotscribe/transcript"
)

var (
	ErrEngineUnavailable = errors.New("transcription engine unavailable")
	ErrInvalidAudio      = errors.New("invalid audio")
	ErrEngineFailure     = errors.New("transcription failed")
	// ErrTimeout is an engine failure; errors.Is matches both.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrEngineFailure)
)

const (
	DeviceCPU         = "cpu"
	DeviceAccelerated = "accelerated"
)

var modelSizes = []string{"tiny", "base", "small", "medium", "large"}

type Options struct {
	ModelSize string // tiny|base|small|medium|large, optionally suffixed (large-v3)
	Device    string // cpu|accelerated
	Precision string // engine-specific, e.g. int8, float16
	Language  string // empty = auto-detect
}

func (o Options) Validate() error {
	if !ValidModelSize(o.ModelSize) {
		return fmt.Errorf("unknown model size %q (want one of %s)", o.ModelSize, strings.Join(modelSizes, ", "))
	}
	if o.Device != DeviceCPU && o.Device != DeviceAccelerated {
		return fmt.Errorf("unknown device %q (want %s or %s)", o.Device, DeviceCPU, DeviceAccelerated)
	}
	return nil
}

func ValidModelSize(size string) bool {
	for _, s := range modelSizes {
		if size == s || strings.HasPrefix(size, s+"-") || strings.HasPrefix(size, s+".") {
			return true
		}
	}
	return false
}

// Request is one validated recording handed to an engine.
type Request struct {
	PCM        []byte
	SampleRate int
	Channels   int
	Options    Options
}

// Engine is a speech recognizer. Returned errors should wrap one of the
// package sentinels; anything else is reported as ErrEngineFailure.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (transcript.Result, error)
}

// concurrent is implemented by engines that are safe for parallel inference.
type concurrent interface {
	Concurrent() bool
}

// Gateway validates payloads, applies the optional deadline and serializes
// access to engines that are not safe for concurrent use.
type Gateway struct {
	engine  Engine
	opts    Options
	timeout time.Duration
	sem     chan struct{} // nil when the engine is concurrent
}

func NewGateway(engine Engine, opts Options, timeout time.Duration) *Gateway {
	g := &Gateway{engine: engine, opts: opts, timeout: timeout}
	if c, ok := engine.(concurrent); !ok || !c.Concurrent() {
		g.sem = make(chan struct{}, 1)
	}
	return g
}

func (g *Gateway) Name() string     { return g.engine.Name() }
func (g *Gateway) Options() Options { return g.opts }

type outcome struct {
	res transcript.Result
	err error
}

func (g *Gateway) Transcribe(ctx context.Context, p *audio.Payload) (transcript.Result, error) {
	if p == nil {
		return transcript.Result{}, fmt.Errorf("%w: no payload", ErrInvalidAudio)
	}
	if p.SampleRate != audio.SampleRate || p.Channels != audio.Channels {
		return transcript.Result{}, fmt.Errorf("%w: got %d Hz with %d channel(s), need %d Hz mono",
			ErrInvalidAudio, p.SampleRate, p.Channels, audio.SampleRate)
	}
	pcm, err := p.Take()
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if len(pcm) == 0 || len(pcm)%audio.BytesPerSample != 0 {
		return transcript.Result{}, fmt.Errorf("%w: %d bytes is not whole PCM16 frames", ErrInvalidAudio, len(pcm))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.sem != nil {
		select {
		case g.sem <- struct{}{}:
		case <-ctx.Done():
			return transcript.Result{}, g.ctxErr(ctx)
		}
	}

	req := Request{
		PCM:        pcm,
		SampleRate: int(p.SampleRate),
		Channels:   int(p.Channels),
		Options:    g.opts,
	}

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		if g.sem != nil {
			// held until the engine really returns, even past a timeout
			defer func() { <-g.sem }()
		}
		res, err := g.engine.Transcribe(ctx, req)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return transcript.Result{}, g.ctxErr(ctx)
	}
	elapsed := time.Since(start)
	metrics.TranscriptionSeconds.WithLabelValues(g.engine.Name()).Observe(elapsed.Seconds())

	if out.err != nil {
		if ctx.Err() != nil {
			return transcript.Result{}, g.ctxErr(ctx)
		}
		return transcript.Result{}, classify(out.err)
	}

	res := out.res
	res.Text = strings.TrimSpace(res.Text)
	res.LanguageConfidence = min(max(res.LanguageConfidence, 0), 1)
	if res.Model == "" {
		res.Model = g.opts.ModelSize
	}
	res.AudioDuration = p.Duration()
	res.Elapsed = elapsed
	res.CreatedAt = time.Now()
	return res, nil
}

func (g *Gateway) ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if g.timeout > 0 {
			return fmt.Errorf("%w after %v", ErrTimeout, g.timeout)
		}
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrEngineFailure, ctx.Err())
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrEngineUnavailable),
		errors.Is(err, ErrInvalidAudio),
		errors.Is(err, ErrEngineFailure):
		return err
	}
	return fmt.Errorf("%w: %v", ErrEngineFailure, err)
}
