package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"hotscribe/log"
)

// PulseAudio needs a short tail to fill its buffer before the stream
// drains, so every cue is padded to this length.
const pulseMinCue = 0.2

type pulsePlayer struct {
	cues *cache
}

func newPlayer() (player, error) {
	return &pulsePlayer{cues: newCache(2, pulseMinCue)}, nil
}

func (p *pulsePlayer) play(c cue) {
	go func() {
		if err := stream(p.cues.get(c)); err != nil {
			log.Debugf("beep: %v", err)
		}
	}()
}

// stream plays pcm on a fresh client and blocks until it drains. A
// client per cue keeps idle connections off the server between sessions.
func stream(pcm []int16) error {
	c, err := pulse.NewClient(pulse.ClientApplicationName("hotscribe"))
	if err != nil {
		return err
	}
	defer c.Close()

	var pos int
	src := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(pcm) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, pcm[pos:])
		pos += n
		return n, nil
	})
	pb, err := c.NewPlayback(src,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(s *proto.CreatePlaybackStream) {
			s.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	defer pb.Close()
	pb.Start()
	pb.Drain()
	pb.Stop()
	return nil
}
