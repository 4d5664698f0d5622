package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hotscribe/sink"
	"hotscribe/transcriber"
)

const noEnvFile = "nonexistent.env"

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: noEnvFile})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.ModelSize != "small" || cfg.Device != transcriber.DeviceCPU || cfg.ComputeType != "int8" {
			t.Errorf("model = %s/%s/%s", cfg.ModelSize, cfg.Device, cfg.ComputeType)
		}
		if cfg.Hotkey != "ctrl+shift+space" {
			t.Errorf("Hotkey = %q", cfg.Hotkey)
		}
		if cfg.Debounce != 200*time.Millisecond {
			t.Errorf("Debounce = %v", cfg.Debounce)
		}
		if cfg.WebAddr() != "localhost:8000" {
			t.Errorf("WebAddr = %q", cfg.WebAddr())
		}
		if cfg.SinkTimeout != 2*time.Second {
			t.Errorf("SinkTimeout = %v", cfg.SinkTimeout)
		}
		if cfg.Inject() != sink.InjectOff {
			t.Errorf("Inject = %q", cfg.Inject())
		}
		if cfg.QueueToggles {
			t.Error("QueueToggles = true, want false")
		}
		if !cfg.WebEnabled || !cfg.Beep {
			t.Error("web and beep should default on")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		t.Setenv("FASTER_WHISPER_MODEL_SIZE", "tiny")
		cfg, err := Load(Overrides{
			EnvFile:    noEnvFile,
			ModelSize:  "medium",
			Hotkey:     "F9",
			WebPort:    9000,
			InjectMode: "paste",
			LogLevel:   "debug",
			NoWeb:      true,
			NoBeep:     true,
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.ModelSize != "medium" {
			t.Errorf("ModelSize = %q, want medium", cfg.ModelSize)
		}
		if cfg.Combo().String() != "f9" {
			t.Errorf("Combo = %q", cfg.Combo())
		}
		if cfg.WebPort != 9000 || cfg.WebEnabled || cfg.Beep {
			t.Errorf("web %d/%v beep %v", cfg.WebPort, cfg.WebEnabled, cfg.Beep)
		}
		if cfg.Inject() != sink.InjectPaste || cfg.LogLevel != "debug" {
			t.Errorf("inject %q log %q", cfg.Inject(), cfg.LogLevel)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		t.Setenv("FASTER_WHISPER_DEVICE", "CUDA")
		t.Setenv("TRANSCRIBE_ENGINE", "HTTP")
		t.Setenv("TRANSCRIBE_TIMEOUT", "30s")
		t.Setenv("QUEUE_TOGGLES", "true")
		t.Setenv("TRANSCRIBE_LANGUAGE", "de")
		cfg, err := Load(Overrides{EnvFile: noEnvFile})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Device != transcriber.DeviceAccelerated {
			t.Errorf("Device = %q, want accelerated", cfg.Device)
		}
		if cfg.Engine != "http" {
			t.Errorf("Engine = %q", cfg.Engine)
		}
		if cfg.TranscribeLimit != 30*time.Second || !cfg.QueueToggles {
			t.Errorf("timeout %v queue %v", cfg.TranscribeLimit, cfg.QueueToggles)
		}
		if opts := cfg.TranscriberOptions(); opts.Language != "de" || opts.Precision != "int8" {
			t.Errorf("options = %+v", opts)
		}
	})

	t.Run("env_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		os.WriteFile(path, []byte("WEB_PORT=8123\nINJECT_MODE=type\n"), 0o644)
		t.Cleanup(func() {
			os.Unsetenv("WEB_PORT")
			os.Unsetenv("INJECT_MODE")
		})

		cfg, err := Load(Overrides{EnvFile: path})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.WebPort != 8123 || cfg.Inject() != sink.InjectType {
			t.Errorf("port %d inject %q", cfg.WebPort, cfg.Inject())
		}
	})
}

func TestLoadRejects(t *testing.T) {
	for _, tt := range []struct {
		name string
		env  map[string]string
	}{
		{"44.1kHz", map[string]string{"AUDIO_SAMPLE_RATE": "44100"}},
		{"stereo", map[string]string{"AUDIO_CHANNELS": "2"}},
		{"model", map[string]string{"FASTER_WHISPER_MODEL_SIZE": "huge"}},
		{"device", map[string]string{"FASTER_WHISPER_DEVICE": "tpu"}},
		{"engine", map[string]string{"TRANSCRIBE_ENGINE": "magic"}},
		{"hotkey", map[string]string{"HOTKEY": "ctrl+shift"}},
		{"inject", map[string]string{"INJECT_MODE": "xdotool"}},
		{"port", map[string]string{"WEB_PORT": "70000"}},
		{"sink timeout", map[string]string{"SINK_TIMEOUT": "0s"}},
		{"bad duration", map[string]string{"HOTKEY_DEBOUNCE": "soon"}},
		{"empty command", map[string]string{"TRANSCRIBE_COMMAND": " "}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(Overrides{EnvFile: noEnvFile}); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestEntriesMaskKey(t *testing.T) {
	t.Setenv("TRANSCRIBE_API_KEY", "sk-abcdef123456")
	cfg, err := Load(Overrides{EnvFile: noEnvFile})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range cfg.Entries() {
		if e.Key == "TRANSCRIBE_API_KEY" && e.Value != "****3456" {
			t.Errorf("api key shown as %q", e.Value)
		}
		if e.Key == "TRANSCRIBE_LANGUAGE" && e.Value != "auto" {
			t.Errorf("language shown as %q", e.Value)
		}
	}
}
