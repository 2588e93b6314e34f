package main

import (
	"fmt"
	"io"
	"os"

	"magma-go/pkg/config"

	"github.com/urfave/cli/v2"
)

// cipherFlags override the matching configuration keys.
func cipherFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Cipher `MODE`: ecb, cbc, cfb, ofb"},
		&cli.StringFlag{Name: "padding", Usage: "Padding `SCHEME` for ecb/cbc: none, zeros, pkcs7, iso7816"},
		&cli.StringFlag{Name: "sbox", Usage: "S-box parameter set `NAME` (test, tc26-z) or 128 hex digits"},
		&cli.StringFlag{Name: "byte-order", Usage: "Block and key byte `ORDER`: little or big"},
		&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "256-bit key as 64 `HEX` digits"},
		&cli.StringFlag{Name: "key-file", Usage: "Key `FILE` (32 raw bytes or 64 hex digits)"},
		&cli.StringFlag{Name: "passphrase", Usage: "Derive the key from `TEXT` with PBKDF2"},
		&cli.StringFlag{Name: "salt", Usage: "PBKDF2 `SALT`"},
		&cli.IntFlag{Name: "workers", Usage: "Goroutines for parallelizable directions"},
	}
}

func ioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "Input `FILE` (default stdin)"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output `FILE` (default stdout)"},
	}
}

// commandConfig applies the command's flags on top of the loaded config.
func commandConfig(c *cli.Context) (*config.Config, error) {
	cfg := *baseConfig(c)
	stringFields := map[string]*string{
		"mode":       &cfg.Mode,
		"padding":    &cfg.Padding,
		"sbox":       &cfg.SBox,
		"byte-order": &cfg.ByteOrder,
		"key":        &cfg.KeyHex,
		"key-file":   &cfg.KeyFile,
		"passphrase": &cfg.Passphrase,
		"salt":       &cfg.Salt,
		"compress":   &cfg.Compress,
	}
	for name, field := range stringFields {
		if c.IsSet(name) {
			*field = c.String(name)
		}
	}
	// A key given on the command line wins over every configured source.
	switch {
	case c.IsSet("key"):
		cfg.KeyFile, cfg.Passphrase = "", ""
	case c.IsSet("key-file"):
		cfg.KeyHex, cfg.Passphrase = "", ""
	case c.IsSet("passphrase"):
		cfg.KeyHex, cfg.KeyFile = "", ""
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("tag-size") {
		cfg.TagSize = c.Int("tag-size")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readInput(c *cli.Context) ([]byte, error) {
	name := c.String("in")
	if name == "" || name == "-" {
		return io.ReadAll(c.App.Reader)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeOutput(c *cli.Context, data []byte) error {
	name := c.String("out")
	if name == "" || name == "-" {
		_, err := c.App.Writer.Write(data)
		return err
	}
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
