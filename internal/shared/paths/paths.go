// Package paths provides the on-disk layout of the backend's data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppDir is the directory created under the user config directory.
const AppDir = "TextNexus"

// Files inside the data directory
const (
	// DurableFile is the encrypted document behind the durable slot
	DurableFile = "textnexus-data.json"

	// DocumentDB is the SQLite database behind the document slot
	DocumentDB = "textnexus.db"

	// LocalFile is the prefixed key-value file behind the local slot
	LocalFile = "local-storage.json"

	// OverridesFile is the optional catalog override document
	OverridesFile = "services.yaml"

	// DetectorFile is the optional scripted activity detector
	DetectorFile = "detector.js"
)

// Logs contains rotated backend logs.
const Logs = "logs"

// LogFile is the default rotating log file, relative to the data directory.
var LogFile = filepath.Join(Logs, "backend.log")

// DataDir returns the per-user data directory, falling back to the temp
// directory when the platform has no config directory.
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(os.TempDir(), strings.ToLower(AppDir))
	}
	return filepath.Join(dir, AppDir)
}

// Resolve joins a relative path onto base. Empty and absolute paths are
// returned as is.
func Resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Ensure creates dir and its parents.
func Ensure(dir string) error {
	if dir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// Optional returns the resolved path of name under base when that file
// exists, and "" otherwise.
func Optional(base, name string) string {
	path := Resolve(base, name)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
