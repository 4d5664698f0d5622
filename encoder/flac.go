// Package encoder compresses captured PCM16 into FLAC for upload.
package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	BitsPerSample = 16
	BlockSize     = 4096 // frames per FLAC block
)

// Stream accepts interleaved little-endian PCM16 in arbitrary chunks and
// emits full FLAC blocks as they fill.
type Stream struct {
	channels int
	rate     uint32

	out     bytes.Buffer
	enc     *flac.Encoder
	pending []int16 // interleaved, less than one block
	frames  uint64
	closed  bool
}

// NewStream starts a FLAC stream for mono or stereo audio at sampleRate.
func NewStream(sampleRate, channels uint32) (*Stream, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("flac: unsupported channel count %d", channels)
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("flac: zero sample rate")
	}
	s := &Stream{channels: int(channels), rate: sampleRate}
	enc, err := flac.NewEncoder(&s.out, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    sampleRate,
		NChannels:     uint8(channels),
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("flac: new encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	s.enc = enc
	return s, nil
}

// Write appends PCM. A trailing half sample is an error.
func (s *Stream) Write(pcm []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("flac: write after close")
	}
	if len(pcm)%2 != 0 {
		return 0, fmt.Errorf("flac: pcm length %d is not sample aligned", len(pcm))
	}
	for i := 0; i < len(pcm); i += 2 {
		s.pending = append(s.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	block := BlockSize * s.channels
	for len(s.pending) >= block {
		if err := s.flush(s.pending[:block]); err != nil {
			return 0, err
		}
		s.pending = s.pending[block:]
	}
	return len(pcm), nil
}

// flush writes one block, deinterleaving into a subframe per channel.
func (s *Stream) flush(interleaved []int16) error {
	n := len(interleaved) / s.channels
	if n == 0 {
		return nil
	}
	subframes := make([]*frame.Subframe, s.channels)
	for ch := range subframes {
		samples := make([]int32, n)
		for i := range n {
			samples[i] = int32(interleaved[i*s.channels+ch])
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}
	}
	layout := frame.ChannelsMono
	if s.channels == 2 {
		layout = frame.ChannelsLR
	}
	err := s.enc.WriteFrame(&frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    s.rate,
			Channels:      layout,
			BitsPerSample: BitsPerSample,
		},
		Subframes: subframes,
	})
	if err != nil {
		return fmt.Errorf("flac: write frame: %w", err)
	}
	s.frames += uint64(n)
	return nil
}

// Close writes the short final block and finishes the stream.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.flush(s.pending); err != nil {
		return err
	}
	s.pending = nil
	if err := s.enc.Close(); err != nil {
		return fmt.Errorf("flac: close: %w", err)
	}
	return nil
}

// Bytes is the encoded stream; complete only after Close.
func (s *Stream) Bytes() []byte { return s.out.Bytes() }

// Frames counts the sample frames encoded so far.
func (s *Stream) Frames() uint64 { return s.frames }

// Encode compresses a whole recording and reports how long it took.
func Encode(pcm []byte, sampleRate, channels uint32) ([]byte, time.Duration, error) {
	start := time.Now()
	s, err := NewStream(sampleRate, channels)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.Write(pcm); err != nil {
		return nil, 0, err
	}
	if err := s.Close(); err != nil {
		return nil, 0, err
	}
	return s.Bytes(), time.Since(start), nil
}
