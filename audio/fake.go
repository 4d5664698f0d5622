package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const fakeFrameSize = 1024

// FakeContext replays PCM into every capture it opens. In realtime mode the
// audio is paced like a microphone and followed by silence until Stop;
// otherwise it is delivered synchronously inside Start.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// OpenErr and StartErr make NewCapture or Start fail.
	OpenErr    error
	StartErr   error
	DeviceList []DeviceInfo

	mu   sync.Mutex
	last *FakeCapture
}

// NewFakeContext replays the samples of a 16-bit WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wavPath, err)
	}
	pcm, err := p.Take()
	if err != nil {
		return nil, err
	}
	return NewFakeContextPCM(pcm, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.DeviceList, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	c := &FakeCapture{
		pcm:       f.pcm,
		realtime:  f.realtime,
		startErr:  f.StartErr,
		device:    device,
		frameSize: config.bytesPerFrame(),
		rate:      config.SampleRate,
		audioDone: make(chan struct{}),
	}
	f.mu.Lock()
	f.last = c
	f.mu.Unlock()
	return c, nil
}

// Last returns the most recently opened capture.
func (f *FakeContext) Last() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	startErr  error
	device    *DeviceInfo
	frameSize int
	rate      uint32
	audioDone chan struct{}

	callbackSlot

	mu       sync.Mutex
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

// AudioDone closes once the whole PCM has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) DeviceName() string { return deviceLabel(f.device, "fake") }

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) feed(chunk []byte) {
	f.emit(chunk, uint32(len(chunk)/f.frameSize))
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	chunkBytes := fakeFrameSize * f.frameSize

	if !f.realtime {
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			end := min(pos+chunkBytes, len(f.pcm))
			f.feed(append([]byte(nil), f.pcm[pos:end]...))
		}
		close(f.audioDone)
		close(f.feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(max(f.rate, 1))
	go func() {
		defer close(f.feedDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		silence := make([]byte, chunkBytes)
		pos := 0
		if len(f.pcm) == 0 {
			close(f.audioDone)
		}
		for {
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				f.feed(append([]byte(nil), f.pcm[pos:end]...))
				pos = end
				if pos >= len(f.pcm) {
					close(f.audioDone)
				}
			} else {
				f.feed(silence)
			}
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
