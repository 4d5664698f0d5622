package log

import (
	"os"
	"path/filepath"
	"runtime"
)

func defaultDir() (string, error) {
	return platformDir(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

// platformDir follows each OS's convention for application logs. On
// Linux they are state, not config.
func platformDir(goos string, getenv func(string) string, home func() (string, error)) (string, error) {
	if goos == "windows" {
		if base := getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "hotscribe", "logs"), nil
		}
	}
	h, err := home()
	if err != nil {
		return "", err
	}
	switch goos {
	case "windows":
		return filepath.Join(h, "AppData", "Local", "hotscribe", "logs"), nil
	case "darwin":
		return filepath.Join(h, "Library", "Logs", "hotscribe"), nil
	}
	state := getenv("XDG_STATE_HOME")
	if state == "" {
		state = filepath.Join(h, ".local", "state")
	}
	return filepath.Join(state, "hotscribe", "logs"), nil
}
