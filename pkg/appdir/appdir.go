// Package appdir locates the per-user state directory of magma-go. Log
// databases and the default config file live there.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EnvOverride points the state directory somewhere other than the home
// directory, mostly for tests and containers.
const EnvOverride = "MAGMA_HOME"

const dirName = ".magma-go"

var (
	appDirCache string
	cacheMu     sync.Mutex
)

// AppDir returns the state directory without creating it.
func AppDir() string {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if appDirCache != "" {
		return appDirCache
	}
	if dir := os.Getenv(EnvOverride); dir != "" {
		appDirCache = dir
		return appDirCache
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// No home (some service accounts): fall back to the working directory.
		appDirCache = dirName
		return appDirCache
	}
	appDirCache = filepath.Join(home, dirName)
	return appDirCache
}

// Ensure creates the state directory if needed and returns it.
func Ensure() (string, error) {
	dir := AppDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("appdir: create %s: %w", dir, err)
	}
	return dir, nil
}

// Join resolves name inside the state directory unless it is already
// absolute.
func Join(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(AppDir(), name)
}

// reset drops the cached location so tests can change EnvOverride.
func reset() {
	cacheMu.Lock()
	appDirCache = ""
	cacheMu.Unlock()
}
