package config

import (
	"os"
	"path/filepath"
)

// BaseDir returns the directory holding askgate state: config, history
// database and event log. ASKGATE_DIR overrides the default ~/.askgate.
func BaseDir() string {
	if dir := os.Getenv("ASKGATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askgate"
	}
	return filepath.Join(home, ".askgate")
}

// HistoryPath returns the SQLite database path for finalized interactions.
func HistoryPath(dir string) string {
	return filepath.Join(dir, "history.db")
}

// LogPath returns the JSONL event log path.
func LogPath(dir string) string {
	return filepath.Join(dir, "log.jsonl")
}
