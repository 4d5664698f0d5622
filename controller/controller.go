// Package controller owns the record/transcribe toggle state machine.
package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hotscribe/audio"
	"hotscribe/log"
	"hotscribe/metrics"
	"hotscribe/transcriber"
	"hotscribe/transcript"
)

type State int32

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	}
	return "unknown"
}

// Outcome is what a single toggle did.
type Outcome int

const (
	Ignored Outcome = iota
	Started
	Stopped
	Queued
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Queued:
		return "queued"
	case Failed:
		return "failed"
	}
	return "ignored"
}

// Error kinds carried by synthetic error results.
const (
	KindDeviceUnavailable = "DeviceUnavailable"
	KindNoActiveCapture   = "NoActiveCapture"
	KindEmptyCapture      = "EmptyCapture"
	KindEngineUnavailable = "EngineUnavailable"
	KindInvalidAudio      = "InvalidAudio"
	KindTimeout           = "Timeout"
	KindEngineFailure     = "EngineFailure"
)

// Kind maps a capture or transcription error to its error kind. Errors that
// match nothing are engine failures.
func Kind(err error) string {
	switch {
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, audio.ErrNoActiveCapture):
		return KindNoActiveCapture
	case errors.Is(err, audio.ErrEmptyCapture):
		return KindEmptyCapture
	case errors.Is(err, transcriber.ErrEngineUnavailable):
		return KindEngineUnavailable
	case errors.Is(err, transcriber.ErrInvalidAudio), errors.Is(err, audio.ErrPayloadConsumed):
		return KindInvalidAudio
	case errors.Is(err, transcriber.ErrTimeout):
		return KindTimeout
	}
	return KindEngineFailure
}

type Capture interface {
	Start() error
	Stop() (*audio.Payload, error)
	DeviceName() string
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, p *audio.Payload) (transcript.Result, error)
}

type Broadcaster interface {
	Broadcast(r transcript.Result)
}

// Feedback is told about session milestones, e.g. to play a sound.
type Feedback interface {
	Started()
	Stopped()
	Failed()
}

type nopFeedback struct{}

func (nopFeedback) Started() {}
func (nopFeedback) Stopped() {}
func (nopFeedback) Failed()  {}

type Options struct {
	// QueueWhileProcessing remembers one toggle that arrives while a result
	// is pending and starts a new recording once it is dispatched.
	QueueWhileProcessing bool
	Feedback             Feedback
}

// Session is one capture-to-result cycle.
type Session struct {
	ID         string
	Seq        uint64
	StartedAt  time.Time
	StoppedAt  time.Time
	SampleRate int
	Channels   int
}

type Controller struct {
	capture  Capture
	gateway  Transcriber
	out      Broadcaster
	opts     Options
	feedback Feedback

	state atomic.Int32

	mu      sync.Mutex
	session *Session
	seq     uint64
	queued  bool

	wg sync.WaitGroup
}

func New(capture Capture, gateway Transcriber, out Broadcaster, opts Options) *Controller {
	fb := opts.Feedback
	if fb == nil {
		fb = nopFeedback{}
	}
	return &Controller{
		capture:  capture,
		gateway:  gateway,
		out:      out,
		opts:     opts,
		feedback: fb,
	}
}

func (c *Controller) State() State { return State(c.state.Load()) }

// Session returns a snapshot of the live session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Sessions is the number of recordings started so far.
func (c *Controller) Sessions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Toggle advances the state machine. It never waits for transcription.
func (c *Controller) Toggle() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out Outcome
	switch c.State() {
	case Idle:
		out = c.startLocked()
	case Recording:
		out = c.stopLocked()
	case Processing:
		out = Ignored
		if c.opts.QueueWhileProcessing && !c.queued {
			c.queued = true
			out = Queued
		}
		log.Debugf("toggle while processing: %s", out)
	}
	metrics.Toggles.WithLabelValues(out.String()).Inc()
	return out
}

func (c *Controller) startLocked() Outcome {
	if !c.state.CompareAndSwap(int32(Idle), int32(Recording)) {
		return Ignored
	}
	if err := c.capture.Start(); err != nil {
		c.state.Store(int32(Idle))
		c.fail("", KindDeviceUnavailable, err)
		return Failed
	}

	c.seq++
	c.session = &Session{
		ID:         uuid.NewString(),
		Seq:        c.seq,
		StartedAt:  time.Now(),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
	log.RecordingStart(c.session.ID, c.capture.DeviceName())
	c.feedback.Started()
	return Started
}

func (c *Controller) stopLocked() Outcome {
	s := c.session
	p, err := c.capture.Stop()
	if err != nil {
		c.session = nil
		c.state.Store(int32(Idle))
		kind := Kind(err)
		if kind == KindEngineFailure {
			kind = KindNoActiveCapture
		}
		c.fail(s.ID, kind, err)
		return Failed
	}

	s.StoppedAt = time.Now()
	s.SampleRate = int(p.SampleRate)
	s.Channels = int(p.Channels)
	log.RecordingStop(s.ID, p.Frames, p.Dropped, p.Duration())

	c.state.Store(int32(Processing))
	c.feedback.Stopped()

	c.wg.Add(1)
	go c.transcribe(*s, p)
	return Stopped
}

// transcribe runs on its own goroutine; c.mu is not held while the engine
// works.
func (c *Controller) transcribe(s Session, p *audio.Payload) {
	defer c.wg.Done()

	res, err := c.gateway.Transcribe(context.Background(), p)
	if err != nil {
		kind := Kind(err)
		log.Errorf("session %s: %s: %v", s.ID, kind, err)
		res = transcript.Failed(s.ID, kind, err)
		metrics.Sessions.WithLabelValues(kind).Inc()
		c.feedback.Failed()
	} else {
		res.SessionID = s.ID
		log.Transcription(s.ID, c.gateway.Name(), res.Language, res.LanguageConfidence, len(res.Segments), res.Elapsed)
		metrics.Sessions.WithLabelValues("ok").Inc()
	}
	// Idle first: a sink reacting to the result may toggle right away.
	c.mu.Lock()
	c.session = nil
	c.state.Store(int32(Idle))
	if c.queued {
		c.queued = false
		out := c.startLocked()
		metrics.Toggles.WithLabelValues(out.String()).Inc()
	}
	c.mu.Unlock()

	c.out.Broadcast(res)
}

func (c *Controller) fail(sessionID, kind string, err error) {
	log.Errorf("session %s: %s: %v", sessionID, kind, err)
	metrics.Sessions.WithLabelValues(kind).Inc()
	c.feedback.Failed()
	c.out.Broadcast(transcript.Failed(sessionID, kind, err))
}

// Run feeds toggles into the state machine until ctx ends. A recording that
// is still open at that point is stopped and transcribed.
func (c *Controller) Run(ctx context.Context, toggles <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			c.finish()
			return ctx.Err()
		case _, ok := <-toggles:
			if !ok {
				c.finish()
				return nil
			}
			c.Toggle()
		}
	}
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = false
	if c.State() == Recording {
		log.Info("shutdown while recording, finishing session")
		c.stopLocked()
	}
}

// Wait blocks until every started transcription has been dispatched.
func (c *Controller) Wait() {
	c.wg.Wait()
}
