package appdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	t.Setenv(EnvOverride, dir)
	reset()
	t.Cleanup(reset)

	if got := AppDir(); got != dir {
		t.Fatalf("AppDir() = %q, want %q", got, dir)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("AppDir must not create the directory, stat err = %v", err)
	}

	got, err := Ensure()
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if fi, err := os.Stat(got); err != nil || !fi.IsDir() {
		t.Fatalf("Ensure did not create %s: %v", got, err)
	}
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvOverride, dir)
	reset()
	t.Cleanup(reset)

	if got, want := Join("magma.db"), filepath.Join(dir, "magma.db"); got != want {
		t.Errorf("Join relative = %q, want %q", got, want)
	}
	abs := filepath.Join(dir, "elsewhere", "x.db")
	if got := Join(abs); got != abs {
		t.Errorf("Join absolute = %q, want %q", got, abs)
	}
}
