package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"magma-go/pkg/appdir"

	"github.com/urfave/cli/v2"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestMain(m *testing.M) {
	cli.OsExiter = func(int) {}
	dir, err := os.MkdirTemp("", "magma-cmd")
	if err != nil {
		panic(err)
	}
	os.Setenv(appdir.EnvOverride, dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// run executes the app with stdin and returns stdout.
func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Reader = bytes.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"magma", "--log-db", "none"}, args...))
	return out.String(), err
}

func TestEncryptDecryptRaw(t *testing.T) {
	msg := []byte("The quick brown fox jumps over the lazy dog")
	ct, err := run(t, msg, "encrypt", "--mode", "cbc", "--padding", "pkcs7", "--key", testKey, "--iv", "1234567890abcdef")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	want := "7578eaa02f911ed01b0bbadeea6f4d32151bc165706b3551785dd5764db924b0687f6d2174c38b19a8ce6137366b9d2d"
	if got := hex.EncodeToString([]byte(ct)); got != want {
		t.Fatalf("ciphertext = %s, want %s", got, want)
	}

	pt, err := run(t, []byte(ct), "decrypt", "--mode", "cbc", "--padding", "pkcs7", "--key", testKey, "--iv", "1234567890abcdef")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != string(msg) {
		t.Fatalf("plaintext = %q", pt)
	}
}

func TestEncryptDecryptPipelineFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "plain.txt")
	enc := filepath.Join(dir, "plain.enc")
	dec := filepath.Join(dir, "plain.dec")
	msg := []byte(strings.Repeat("pipeline payload ", 100))
	if err := os.WriteFile(in, msg, 0o600); err != nil {
		t.Fatal(err)
	}

	common := []string{"--passphrase", "hunter2", "--salt", "s", "--compress", "zstd", "--tag-size", "8"}
	if _, err := run(t, nil, append([]string{"encrypt", "-i", in, "-o", enc}, common...)...); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := run(t, nil, append([]string{"decrypt", "-i", enc, "-o", dec}, common...)...); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	got, err := os.ReadFile(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatal("pipeline round trip mismatch")
	}

	wrong := []string{"--passphrase", "hunter3", "--salt", "s", "--compress", "zstd", "--tag-size", "8"}
	if _, err := run(t, nil, append([]string{"decrypt", "-i", enc, "-o", dec}, wrong...)...); err == nil {
		t.Fatal("decrypt with the wrong passphrase succeeded")
	}
}

func TestMACCommand(t *testing.T) {
	msg := []byte("The quick brown fox jumps over the lazy dog")
	out, err := run(t, msg, "mac", "--key", testKey, "--tag-size", "8")
	if err != nil {
		t.Fatalf("mac: %v", err)
	}
	if strings.TrimSpace(out) != "b4601a6e1385f1c1" {
		t.Fatalf("mac = %q", out)
	}
	out, err = run(t, msg, "mac", "--key", testKey, "--tag-size", "8", "--gost-cycle")
	if err != nil || strings.TrimSpace(out) != "8e9ca4b2dd23a3e6" {
		t.Fatalf("mac --gost-cycle = %q, %v", out, err)
	}
	if out, err := run(t, msg, "mac", "--key", testKey, "--tag-size", "8", "--verify", "b4601a6e1385f1c1"); err != nil || strings.TrimSpace(out) != "OK" {
		t.Fatalf("verify = %q, %v", out, err)
	}
	if _, err := run(t, msg, "mac", "--key", testKey, "--verify", "00000000"); err == nil {
		t.Fatal("wrong tag verified")
	}
}

func TestSelftestCommand(t *testing.T) {
	out, err := run(t, nil, "selftest")
	if err != nil {
		t.Fatalf("selftest: %v\n%s", err, out)
	}
	if strings.Contains(out, "FAIL") || !strings.Contains(out, "PASS  RFC 8891 block") {
		t.Fatalf("selftest output:\n%s", out)
	}
}

func TestBenchCommand(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "bench.csv")
	out, err := run(t, nil, "bench", "--size", "512", "--iterations", "2", "--all", "--output", csvPath)
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	if !strings.Contains(out, "Throughput: Mode / ofb") {
		t.Errorf("bench output:\n%s", out)
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Errorf("csv not written: %v", err)
	}
}

func TestBadFlags(t *testing.T) {
	if _, err := run(t, []byte("x"), "encrypt", "--mode", "xts", "--key", testKey); err == nil {
		t.Error("unknown mode accepted")
	}
	if _, err := run(t, []byte("x"), "encrypt", "--key", "abcd"); err == nil {
		t.Error("short key accepted")
	}
	if _, err := run(t, []byte("x"), "encrypt", "--mode", "ecb", "--padding", "none", "--raw", "--key", testKey); err == nil {
		t.Error("unaligned ecb accepted")
	}
}

func TestParseTimeSpec(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.Local)
	cases := map[string]time.Time{
		"1h":                   now.Add(-time.Hour),
		"2d":                   now.Add(-48 * time.Hour),
		"1w":                   now.Add(-7 * 24 * time.Hour),
		"2025-05-01":           time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local),
		"2025-05-01 08:30:00":  time.Date(2025, 5, 1, 8, 30, 0, 0, time.Local),
		"2025-05-01T08:30:00Z": time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC),
	}
	for spec, want := range cases {
		got, err := parseTimeSpec(spec, now)
		if err != nil {
			t.Errorf("%q: %v", spec, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q = %v, want %v", spec, got, want)
		}
	}
	for _, bad := range []string{"", "yesterday", "xd"} {
		if _, err := parseTimeSpec(bad, now); err == nil {
			t.Errorf("%q parsed", bad)
		}
	}
}
