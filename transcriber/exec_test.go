package transcriber

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func execRequest() Request {
	return Request{
		PCM:        make([]byte, 3200),
		SampleRate: 16000,
		Channels:   1,
		Options:    Options{ModelSize: "small", Device: DeviceAccelerated, Precision: "int8", Language: "de"},
	}
}

func TestParseExecOutput(t *testing.T) {
	for _, tt := range []struct {
		name     string
		out      string
		wantText string
		wantLang string
		wantErr  bool
	}{
		{
			name:     "full",
			out:      `{"text":"hello world","language":"en","language_probability":0.95,"segments":[{"start":0,"end":1.5,"text":" hello world"}]}`,
			wantText: "hello world",
			wantLang: "en",
		},
		{
			name:     "text from segments",
			out:      `{"language":"fr","segments":[{"start":0,"end":1,"text":"bonjour"},{"start":1,"end":2,"text":" le monde"}]}`,
			wantText: "bonjour le monde",
			wantLang: "fr",
		},
		{name: "empty speech", out: `{"text":"","language":"en"}` + "\n", wantLang: "en"},
		{name: "engine error", out: `{"error":"model not loaded"}`, wantErr: true},
		{name: "garbage", out: "Traceback (most recent call last):", wantErr: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseExecOutput([]byte(tt.out))
			if tt.wantErr {
				if !errors.Is(err, ErrEngineFailure) {
					t.Fatalf("err = %v, want ErrEngineFailure", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", r.Text, tt.wantText)
			}
			if r.Language != tt.wantLang {
				t.Errorf("Language = %q, want %q", r.Language, tt.wantLang)
			}
		})
	}
}

func TestExecEngineArgs(t *testing.T) {
	e, err := NewExecEngine(`whisper-json --beam-size 5`)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(e.commandArgs("/tmp/a.wav", execRequest().Options), " ")
	want := "--beam-size 5 --audio /tmp/a.wav --model small --device cuda --compute-type int8 --language de"
	if got != want {
		t.Errorf("args = %q\nwant   %q", got, want)
	}
}

func TestNewExecEngineEmpty(t *testing.T) {
	if _, err := NewExecEngine("   "); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestExecEngineRun(t *testing.T) {
	requireShell(t)
	e, err := NewExecEngine(`sh -c 'test -s "$2" && echo "{\"text\": \"test recording\", \"language\": \"en\", \"language_probability\": 0.9}"' engine`)
	if err != nil {
		t.Fatal(err)
	}
	r, err := e.Transcribe(context.Background(), execRequest())
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "test recording" || r.Language != "en" || r.LanguageConfidence != 0.9 {
		t.Errorf("got %+v", r)
	}
}

func TestExecEngineFailure(t *testing.T) {
	requireShell(t)
	e, err := NewExecEngine(`sh -c 'echo "loading..." >&2; echo "model not loaded" >&2; exit 3' engine`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Transcribe(context.Background(), execRequest())
	if !errors.Is(err, ErrEngineFailure) {
		t.Fatalf("err = %v, want ErrEngineFailure", err)
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("stderr message lost: %v", err)
	}
}

func TestExecEngineMissingBinary(t *testing.T) {
	e, err := NewExecEngine("hotscribe-no-such-recognizer")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Check(); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Check err = %v, want ErrEngineUnavailable", err)
	}
	if _, err := e.Transcribe(context.Background(), execRequest()); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Transcribe err = %v, want ErrEngineUnavailable", err)
	}
}
