package encoder

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/mewkiz/flac"
)

const rate = 16000

func sine(frames, channels int) []byte {
	pcm := make([]byte, frames*channels*2)
	for i := range frames {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
		for ch := range channels {
			binary.LittleEndian.PutUint16(pcm[(i*channels+ch)*2:], uint16(s))
		}
	}
	return pcm
}

func TestStreamChunkedWrites(t *testing.T) {
	s, err := NewStream(rate, 1)
	if err != nil {
		t.Fatal(err)
	}
	pcm := sine(3*BlockSize+100, 1)
	// odd chunking must not matter as long as chunks are sample aligned
	for len(pcm) > 0 {
		n := min(1000, len(pcm))
		if _, err := s.Write(pcm[:n]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		pcm = pcm[n:]
	}
	if got := s.Frames(); got != 3*BlockSize {
		t.Errorf("Frames before Close = %d, want %d", got, 3*BlockSize)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := s.Frames(); got != 3*BlockSize+100 {
		t.Errorf("Frames = %d, want %d", got, 3*BlockSize+100)
	}
	if _, err := s.Write([]byte{0, 0}); err == nil {
		t.Error("write after close accepted")
	}
}

func TestStreamEmpty(t *testing.T) {
	s, err := NewStream(rate, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on empty stream: %v", err)
	}
	if data := s.Bytes(); len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("expected a FLAC header")
	}
}

func TestEncodeRoundTripStereo(t *testing.T) {
	pcm := sine(BlockSize+BlockSize/2, 2)
	data, elapsed, err := Encode(pcm, rate, 2)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	t.Logf("raw %d bytes, flac %d bytes in %v", len(pcm), len(data), elapsed)

	st, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Info.NChannels != 2 || st.Info.SampleRate != rate {
		t.Errorf("stream info = %+v", st.Info)
	}
	var frames int
	for {
		f, err := st.ParseNext()
		if err != nil {
			break
		}
		frames += int(f.BlockSize)
	}
	if frames != BlockSize+BlockSize/2 {
		t.Errorf("decoded %d frames, want %d", frames, BlockSize+BlockSize/2)
	}
}

func TestEncodeRejects(t *testing.T) {
	if _, _, err := Encode([]byte{1, 2, 3}, rate, 1); err == nil {
		t.Error("odd-length PCM accepted")
	}
	if _, _, err := Encode(nil, rate, 6); err == nil {
		t.Error("six channels accepted")
	}
	if _, _, err := Encode(nil, 0, 1); err == nil {
		t.Error("zero sample rate accepted")
	}
}
