package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"hotscribe/audio"
	"hotscribe/hotkey"
	"hotscribe/sink"
	"hotscribe/transcriber"
)

type Config struct {
	ModelSize   string `env:"FASTER_WHISPER_MODEL_SIZE" envDefault:"small"`
	Device      string `env:"FASTER_WHISPER_DEVICE" envDefault:"cpu"`
	ComputeType string `env:"FASTER_WHISPER_COMPUTE_TYPE" envDefault:"int8"`
	Language    string `env:"TRANSCRIBE_LANGUAGE"`

	Engine          string        `env:"TRANSCRIBE_ENGINE" envDefault:"exec"`
	Command         string        `env:"TRANSCRIBE_COMMAND" envDefault:"whisper-json"`
	APIURL          string        `env:"TRANSCRIBE_URL" envDefault:"https://api.openai.com/v1/audio/transcriptions"`
	APIModel        string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	APIKey          string        `env:"TRANSCRIBE_API_KEY"`
	FakeText        string        `env:"TRANSCRIBE_FAKE_TEXT" envDefault:"test recording"`
	TranscribeLimit time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"2m"`

	SampleRate  uint32        `env:"AUDIO_SAMPLE_RATE" envDefault:"16000"`
	Channels    uint32        `env:"AUDIO_CHANNELS" envDefault:"1"`
	AudioDevice string        `env:"AUDIO_DEVICE"`
	MaxDuration time.Duration `env:"AUDIO_MAX_DURATION" envDefault:"10m"`

	Hotkey       string        `env:"HOTKEY" envDefault:"ctrl+shift+space"`
	Debounce     time.Duration `env:"HOTKEY_DEBOUNCE" envDefault:"200ms"`
	QueueToggles bool          `env:"QUEUE_TOGGLES" envDefault:"false"`
	WebEnabled   bool          `env:"WEB_ENABLED" envDefault:"true"`
	WebHost      string        `env:"WEB_HOST" envDefault:"localhost"`
	WebPort      int           `env:"WEB_PORT" envDefault:"8000"`
	SinkTimeout  time.Duration `env:"SINK_TIMEOUT" envDefault:"2s"`
	InjectMode   string        `env:"INJECT_MODE" envDefault:"off"`
	Beep         bool          `env:"BEEP" envDefault:"true"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	ModelSize   string
	Language    string
	Engine      string
	AudioDevice string
	Hotkey      string
	WebPort     int
	InjectMode  string
	LogLevel    string
	NoWeb       bool
	NoBeep      bool
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.ModelSize != "" {
		cfg.ModelSize = overrides.ModelSize
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.Engine != "" {
		cfg.Engine = overrides.Engine
	}
	if overrides.AudioDevice != "" {
		cfg.AudioDevice = overrides.AudioDevice
	}
	if overrides.Hotkey != "" {
		cfg.Hotkey = overrides.Hotkey
	}
	if overrides.WebPort != 0 {
		cfg.WebPort = overrides.WebPort
	}
	if overrides.InjectMode != "" {
		cfg.InjectMode = overrides.InjectMode
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.NoWeb {
		cfg.WebEnabled = false
	}
	if overrides.NoBeep {
		cfg.Beep = false
	}

	cfg.Device = normalizeDevice(cfg.Device)
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeDevice(d string) string {
	switch d = strings.ToLower(strings.TrimSpace(d)); d {
	case "cuda", "gpu", "auto":
		return transcriber.DeviceAccelerated
	}
	return d
}

func (c *Config) Validate() error {
	if c.SampleRate != audio.SampleRate || c.Channels != audio.Channels {
		return fmt.Errorf("audio must be %d Hz mono, got %d Hz with %d channel(s)",
			audio.SampleRate, c.SampleRate, c.Channels)
	}
	if err := c.TranscriberOptions().Validate(); err != nil {
		return err
	}
	switch c.Engine {
	case "exec":
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("TRANSCRIBE_COMMAND is required for the exec engine")
		}
	case "http":
		if c.APIURL == "" {
			return fmt.Errorf("TRANSCRIBE_URL is required for the http engine")
		}
	case "fake":
	default:
		return fmt.Errorf("unknown engine %q (use exec, http, or fake)", c.Engine)
	}
	if _, err := hotkey.Parse(c.Hotkey); err != nil {
		return err
	}
	if c.Debounce < 0 || c.TranscribeLimit < 0 || c.MaxDuration < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.SinkTimeout <= 0 {
		return fmt.Errorf("SINK_TIMEOUT must be positive, got %v", c.SinkTimeout)
	}
	if c.WebPort < 1 || c.WebPort > 65535 {
		return fmt.Errorf("WEB_PORT %d out of range", c.WebPort)
	}
	if _, err := sink.ParseInjectMode(c.InjectMode); err != nil {
		return err
	}
	return nil
}

func (c *Config) TranscriberOptions() transcriber.Options {
	return transcriber.Options{
		ModelSize: c.ModelSize,
		Device:    c.Device,
		Precision: c.ComputeType,
		Language:  c.Language,
	}
}

// Combo is the parsed hotkey. Load has already validated it.
func (c *Config) Combo() hotkey.Combo {
	combo, _ := hotkey.Parse(c.Hotkey)
	return combo
}

func (c *Config) Inject() sink.InjectMode {
	m, _ := sink.ParseInjectMode(c.InjectMode)
	return m
}

func (c *Config) WebAddr() string {
	return net.JoinHostPort(c.WebHost, strconv.Itoa(c.WebPort))
}

// Entry is one row of the effective configuration.
type Entry struct {
	Key   string
	Value string
}

// Entries lists the effective settings by env name, with secrets masked.
func (c *Config) Entries() []Entry {
	key := "(unset)"
	if c.APIKey != "" {
		key = "****" + c.APIKey[max(len(c.APIKey)-4, 0):]
	}
	return []Entry{
		{"FASTER_WHISPER_MODEL_SIZE", c.ModelSize},
		{"FASTER_WHISPER_DEVICE", c.Device},
		{"FASTER_WHISPER_COMPUTE_TYPE", c.ComputeType},
		{"TRANSCRIBE_LANGUAGE", orAuto(c.Language)},
		{"TRANSCRIBE_ENGINE", c.Engine},
		{"TRANSCRIBE_COMMAND", c.Command},
		{"TRANSCRIBE_URL", c.APIURL},
		{"TRANSCRIBE_MODEL", c.APIModel},
		{"TRANSCRIBE_API_KEY", key},
		{"TRANSCRIBE_TIMEOUT", c.TranscribeLimit.String()},
		{"AUDIO_SAMPLE_RATE", strconv.FormatUint(uint64(c.SampleRate), 10)},
		{"AUDIO_CHANNELS", strconv.FormatUint(uint64(c.Channels), 10)},
		{"AUDIO_DEVICE", orDefault(c.AudioDevice)},
		{"AUDIO_MAX_DURATION", c.MaxDuration.String()},
		{"HOTKEY", c.Combo().String()},
		{"HOTKEY_DEBOUNCE", c.Debounce.String()},
		{"QUEUE_TOGGLES", strconv.FormatBool(c.QueueToggles)},
		{"WEB_ENABLED", strconv.FormatBool(c.WebEnabled)},
		{"WEB_HOST", c.WebHost},
		{"WEB_PORT", strconv.Itoa(c.WebPort)},
		{"SINK_TIMEOUT", c.SinkTimeout.String()},
		{"INJECT_MODE", string(c.Inject())},
		{"BEEP", strconv.FormatBool(c.Beep)},
		{"LOG_LEVEL", c.LogLevel},
	}
}

func orAuto(s string) string {
	if s == "" {
		return "auto"
	}
	return s
}

func orDefault(s string) string {
	if s == "" {
		return "(system default)"
	}
	return s
}
