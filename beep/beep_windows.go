package beep

// No playback backend on Windows; cues are dropped.
type silentPlayer struct{}

func (silentPlayer) play(cue) {}

func newPlayer() (player, error) { return silentPlayer{}, nil }
