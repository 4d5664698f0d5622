package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
	level          = zerolog.InfoLevel
)

// NetworkMetrics is the per-request timing reported by HTTP engines.
type NetworkMetrics struct {
	AudioLengthS float64
	UploadKB     float64
	EncodeTimeMs float64
	DNSTimeMs    float64
	TLSTimeMs    float64
	TTFBMs       float64
	TotalTimeMs  float64
	ConnReused   bool
	TLSProto     string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: HOTSCRIBE_LOG_PATH environment variable
	if envPath := os.Getenv("HOTSCRIBE_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return defaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// SetLevel accepts zerolog level names (debug, info, warn, error).
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	logMu.Lock()
	level = lvl
	if logReady {
		diagLog = diagLog.Level(lvl)
	}
	logMu.Unlock()
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

// Component returns a sub-logger tagged with the component name. Before Init
// it returns a disabled logger.
func Component(name string) zerolog.Logger {
	if !logReady {
		return zerolog.Nop()
	}
	return diagLog.With().Str("component", name).Logger()
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(engine, model, hotkey string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("engine", engine).
		Str("model", model).
		Str("hotkey", hotkey).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

func RecordingStart(sessionID, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("device", device).
		Msg("recording_start")
}

func RecordingStop(sessionID string, frames, dropped uint64, dur time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Uint64("frames", frames).
		Uint64("dropped", dropped).
		Float64("audio_s", dur.Seconds()).
		Msg("recording_stop")
}

func Transcription(sessionID, engine, language string, confidence float64, segments int, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("engine", engine).
		Str("lang", language).
		Float64("confidence", confidence).
		Int("segments", segments).
		Float64("total_ms", float64(elapsed.Microseconds())/1000).
		Msg("transcription")
}

func Network(engine string, m NetworkMetrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("engine", engine).
		Str("conn", connStatus)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("upload_kb", m.UploadKB).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("engine_request")
}

func Dispatch(sessionID string, sinks int, failed bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Int("sinks", sinks).
		Bool("error", failed).
		Msg("dispatch")
}

func SinkError(sink string, err error) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("sink", sink).
		Err(err).
		Msg("sink_error")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}
