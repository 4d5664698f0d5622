package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"hotscribe/audio"
	"hotscribe/transcript"
)

// ExecEngine runs a local recognizer CLI once per recording. The command is
// given the recording as a WAV file and must print one JSON object:
//
//	{"text": "...", "language": "en", "language_probability": 0.98,
//	 "segments": [{"start": 0.0, "end": 1.2, "text": "..."}]}
type ExecEngine struct {
	args   []string
	tmpDir string
}

type execSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type execResult struct {
	Text                string        `json:"text"`
	Language            string        `json:"language"`
	LanguageProbability float64       `json:"language_probability"`
	Segments            []execSegment `json:"segments"`
	Model               string        `json:"model"`
	Error               string        `json:"error"`
}

func NewExecEngine(command string) (*ExecEngine, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: engine command is empty", ErrEngineUnavailable)
	}
	return &ExecEngine{args: args, tmpDir: os.TempDir()}, nil
}

func (e *ExecEngine) Name() string { return "exec" }

// Check verifies the executable can be found.
func (e *ExecEngine) Check() error {
	if _, err := exec.LookPath(e.args[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

func (e *ExecEngine) Transcribe(ctx context.Context, req Request) (transcript.Result, error) {
	file, err := os.CreateTemp(e.tmpDir, "hotscribe_*.wav")
	if err != nil {
		return transcript.Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())

	err = audio.WriteWAV(file, req.PCM, req.SampleRate, req.Channels)
	file.Close()
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	command := exec.CommandContext(ctx, e.args[0], e.commandArgs(file.Name(), req.Options)...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return transcript.Result{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		if ctx.Err() != nil {
			return transcript.Result{}, ctx.Err()
		}
		msg := lastLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return transcript.Result{}, fmt.Errorf("%w: %s", ErrEngineFailure, msg)
	}

	return parseExecOutput(stdout.Bytes())
}

func (e *ExecEngine) commandArgs(wavPath string, opts Options) []string {
	args := append([]string{}, e.args[1:]...)
	args = append(args, "--audio", wavPath)
	if opts.ModelSize != "" {
		args = append(args, "--model", opts.ModelSize)
	}
	switch opts.Device {
	case DeviceAccelerated:
		args = append(args, "--device", "cuda")
	case DeviceCPU:
		args = append(args, "--device", "cpu")
	}
	if opts.Precision != "" {
		args = append(args, "--compute-type", opts.Precision)
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	return args
}

func parseExecOutput(out []byte) (transcript.Result, error) {
	var resp execResult
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return transcript.Result{}, fmt.Errorf("%w: decode engine output: %v", ErrEngineFailure, err)
	}
	if resp.Error != "" {
		return transcript.Result{}, fmt.Errorf("%w: %s", ErrEngineFailure, resp.Error)
	}

	r := transcript.Result{
		Text:               resp.Text,
		Language:           resp.Language,
		LanguageConfidence: resp.LanguageProbability,
		Model:              resp.Model,
	}
	for _, s := range resp.Segments {
		r.Segments = append(r.Segments, transcript.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if r.Text == "" && len(r.Segments) > 0 {
		parts := make([]string, len(r.Segments))
		for i, s := range r.Segments {
			parts[i] = s.Text
		}
		r.Text = strings.Join(parts, " ")
	}
	return r, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
