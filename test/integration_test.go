//go:build integration

package test_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hotscribe/audio"
	"hotscribe/clipboard"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("HOTSCRIBE_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "HOTSCRIBE_TEST_BIN not set; build the binary and point it here")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	silencePath := filepath.Join("data", "silence.wav")
	if err := writeSilence(silencePath, audio.SampleRate, 1.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.Remove(silencePath)
	os.Exit(code)
}

// writeSilence writes durationS seconds of mono PCM16 silence as a WAV.
func writeSilence(path string, sampleRate int, durationS float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	pcm := make([]byte, int(float64(sampleRate)*durationS)*audio.BytesPerSample)
	if err := audio.WriteWAV(f, pcm, sampleRate, 1); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runHotscribe runs the binary in -test mode with the fake engine unless env
// overrides it.
func runHotscribe(t *testing.T, stdin string, env []string, args ...string) (logDir, stdout string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-env", "nonexistent.env", "-no-web", "-no-beep", "-test"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"TRANSCRIBE_ENGINE=fake",
		"TRANSCRIBE_FAKE_TEXT=integration test words",
		"HOTKEY_DEBOUNCE=0s",
	)
	cmd.Env = append(cmd.Env, env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("hotscribe exited with error: %v\noutput: %s", err, out)
	}
	return logDir, string(out)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireTranscription(t *testing.T, logDir string) string {
	t.Helper()
	text := readLog(t, logDir, "transcribe_log.txt")
	if strings.TrimSpace(text) == "" {
		t.Fatal("transcribe_log.txt is empty, expected transcribed words")
	}
	return text
}

func TestToggleTranscribes(t *testing.T) {
	logDir, out := runHotscribe(t, cmds("TOGGLE", "TOGGLE", "WAIT", "QUIT"), nil, "data/silence.wav")
	text := requireTranscription(t, logDir)
	if !strings.Contains(text, "integration test words") {
		t.Errorf("transcribe log = %q", text)
	}
	if !strings.Contains(out, "integration test words") {
		t.Errorf("terminal output missing transcript: %q", out)
	}
}

func TestTwoSessions(t *testing.T) {
	logDir, _ := runHotscribe(t, cmds("TOGGLE", "TOGGLE", "WAIT", "TOGGLE", "TOGGLE", "WAIT", "QUIT"),
		nil, "data/silence.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if got := strings.Count(diag, "recording_start"); got != 2 {
		t.Errorf("recording_start events = %d, want 2", got)
	}
	if got := strings.Count(diag, " transcription "); got != 2 {
		t.Errorf("transcription events = %d, want 2", got)
	}
	if !strings.Contains(diag, "session_end") {
		t.Error("expected session_end in diagnostics")
	}
}

func TestKeydownKeyupPairToggles(t *testing.T) {
	logDir, _ := runHotscribe(t, cmds("KEYDOWN", "KEYUP", "SLEEP 50", "KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		nil, "data/silence.wav")
	requireTranscription(t, logDir)
}

func TestEngineFailureRecovers(t *testing.T) {
	logDir, out := runHotscribe(t, cmds("TOGGLE", "TOGGLE", "WAIT", "TOGGLE", "TOGGLE", "WAIT", "QUIT"),
		[]string{"TRANSCRIBE_ENGINE=exec", "TRANSCRIBE_COMMAND=false"}, "data/silence.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, "EngineFailure") < 2 {
		t.Errorf("expected two EngineFailure entries in diagnostics:\n%s", diag)
	}
	if !strings.Contains(out, "[EngineFailure]") {
		t.Errorf("terminal output missing error line: %q", out)
	}
}

func TestQuitWhileRecording(t *testing.T) {
	logDir, _ := runHotscribe(t, cmds("TOGGLE", "SLEEP 100", "QUIT"), nil, "data/silence.wav")
	requireTranscription(t, logDir)
}

func TestClipboardRestore(t *testing.T) {
	sentinel := fmt.Sprintf("hotscribe-test-sentinel-%d", time.Now().UnixNano())
	if err := clipboard.Copy(sentinel); err != nil {
		t.Skip("clipboard not available")
	}

	_, _ = runHotscribe(t, cmds("TOGGLE", "TOGGLE", "WAIT", "SLEEP 1200", "QUIT"),
		[]string{"INJECT_MODE=paste"}, "data/silence.wav")

	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != sentinel {
		t.Errorf("clipboard not restored: got %q, want %q", strings.TrimSpace(clip), sentinel)
	}
}
