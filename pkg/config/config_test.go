package config

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"magma-go/pkg/magma"
	"magma-go/pkg/modes"
	"magma-go/pkg/transform"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Mode != "cbc" || cfg.Padding != "pkcs7" || cfg.TagSize != modes.DefaultTagSize {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if _, err := cfg.Cipher(); !errors.Is(err, ErrNoKey) {
		t.Errorf("Cipher without key: err = %v, want ErrNoKey", err)
	}
}

func TestLoadFileEnvAndOverrides(t *testing.T) {
	path := writeFile(t, "magma.yaml", strings.Join([]string{
		"mode: ecb",
		"padding: iso7816",
		"sbox: tc26-z",
		"byte_order: big",
		"key_hex: " + testKeyHex,
		"tag_size: 8",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "ecb" || cfg.Padding != "iso7816" || cfg.TagSize != 8 || cfg.ConfigFile != path {
		t.Errorf("file values not applied: %+v", cfg)
	}

	t.Setenv("MAGMA_MODE", "ofb")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load with env: %v", err)
	}
	if cfg.Mode != "ofb" {
		t.Errorf("env mode = %q, want ofb", cfg.Mode)
	}

	cfg, err = LoadWithOverrides(path, map[string]any{"mode": "cfb", "workers": 3})
	if err != nil {
		t.Fatalf("LoadWithOverrides: %v", err)
	}
	if cfg.Mode != "cfb" || cfg.Workers != 3 {
		t.Errorf("overrides not applied: mode %q workers %d", cfg.Mode, cfg.Workers)
	}

	c, err := cfg.Cipher()
	if err != nil {
		t.Fatalf("Cipher: %v", err)
	}
	if c.SubstitutionBox() != magma.SBoxTC26Z || c.ByteOrder() != binary.BigEndian {
		t.Error("sbox or byte order not applied")
	}
	if c.Key()[0] != 0x00010203 {
		t.Errorf("big endian key word 0 = %08x", c.Key()[0])
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, body := range []string{
		"mode: xts",
		"padding: ansi",
		"sbox: nope",
		"byte_order: middle",
		"tag_size: 9",
		"compress: lz4",
	} {
		path := writeFile(t, "bad.yaml", body)
		if _, err := Load(path); err == nil {
			t.Errorf("Load accepted %q", body)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load accepted a missing explicit file")
	}
}

func TestKeySources(t *testing.T) {
	want, _ := magma.NewCipher(mustKey(t))

	raw := writeFile(t, "raw.key", string(mustKey(t)))
	hexFile := writeFile(t, "hex.key", testKeyHex+"\n")
	for name, cfg := range map[string]*Config{
		"hex":      {KeyHex: testKeyHex},
		"raw file": {KeyFile: raw},
		"hex file": {KeyFile: hexFile},
	} {
		full := DefaultConfig()
		full.KeyHex, full.KeyFile = cfg.KeyHex, cfg.KeyFile
		c, err := full.Cipher()
		if err != nil {
			t.Fatalf("%s: Cipher: %v", name, err)
		}
		if c.Key() != want.Key() {
			t.Errorf("%s: key = %08x, want %08x", name, c.Key(), want.Key())
		}
	}

	pass := DefaultConfig()
	pass.Passphrase, pass.Salt = "secret", "pepper"
	c1, err := pass.Cipher()
	if err != nil {
		t.Fatalf("passphrase Cipher: %v", err)
	}
	pass.Salt = "other"
	c2, _ := pass.Cipher()
	if c1.Key() == c2.Key() {
		t.Error("salt does not affect the derived key")
	}

	bad := DefaultConfig()
	bad.KeyHex = "zz"
	if _, err := bad.Cipher(); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad hex: err = %v, want ErrInvalidKey", err)
	}
	bad.KeyHex = "0011"
	if _, err := bad.Cipher(); !errors.Is(err, magma.ErrInvalidKeySize) {
		t.Errorf("short key: err = %v, want ErrInvalidKeySize", err)
	}
}

func TestContextAndPipeline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyHex = testKeyHex
	cfg.Compress = "zstd"

	ctx, err := cfg.Context()
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if ctx.Mode() != modes.CBC || ctx.Padding() != modes.PaddingPKCS7 {
		t.Errorf("context = %v/%v", ctx.Mode(), ctx.Padding())
	}

	p, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	msg := []byte("configured pipeline payload")
	wire, err := p.PrepareOutput(msg)
	if err != nil {
		t.Fatalf("PrepareOutput: %v", err)
	}
	back, err := p.ParseInput(wire)
	if err != nil || !bytes.Equal(back, msg) {
		t.Fatalf("ParseInput = %q, %v", back, err)
	}
}

func TestPipelineMACUsesDerivedKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyHex = testKeyHex
	cfg.TagSize = 8

	p, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	wire, err := p.PrepareOutput([]byte("tagged payload"))
	if err != nil {
		t.Fatalf("PrepareOutput: %v", err)
	}
	body := wire[:len(wire)-cfg.TagSize]

	macKey, err := transform.MACKey(mustKey(t))
	if err != nil {
		t.Fatalf("MACKey: %v", err)
	}
	derived, err := magma.NewCipher(macKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	tr, err := transform.NewMACTransform(derived, cfg.TagSize)
	if err != nil {
		t.Fatalf("NewMACTransform: %v", err)
	}
	if _, err := tr.Reverse(wire); err != nil {
		t.Errorf("tag does not verify under the derived mac key: %v", err)
	}

	enc, err := cfg.Cipher()
	if err != nil {
		t.Fatalf("Cipher: %v", err)
	}
	reused, _ := transform.NewMACTransform(enc, cfg.TagSize)
	if same, _ := reused.Apply(body); bytes.Equal(same, wire) {
		t.Error("mac stage is keyed with the encryption key")
	}
}

func mustKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, magma.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}
