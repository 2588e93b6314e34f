// Package config loads magma-go settings from a YAML file, MAGMA_*
// environment variables and explicit overrides, in rising precedence.
package config

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"magma-go/pkg/magma"
	"magma-go/pkg/modes"
	"magma-go/pkg/transform"

	"github.com/spf13/viper"
)

var (
	ErrNoKey            = errors.New("config: no key configured (set key_hex, key_file or passphrase)")
	ErrInvalidKey       = errors.New("config: invalid key material")
	ErrInvalidByteOrder = errors.New("config: invalid byte order")
)

type Config struct {
	Mode          string `mapstructure:"mode"`
	Padding       string `mapstructure:"padding"`
	SBox          string `mapstructure:"sbox"`
	ByteOrder     string `mapstructure:"byte_order"`
	KeyHex        string `mapstructure:"key_hex"`
	KeyFile       string `mapstructure:"key_file"`
	Passphrase    string `mapstructure:"passphrase"`
	Salt          string `mapstructure:"salt"`
	TagSize       int    `mapstructure:"tag_size"`
	Workers       int    `mapstructure:"workers"`
	Compress      string `mapstructure:"compress"`
	LogDB         string `mapstructure:"log_db"`
	APIListenAddr string `mapstructure:"api_listen_address"`
	ConfigFile    string `mapstructure:"config_file"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:          "cbc",
		Padding:       "pkcs7",
		SBox:          "test",
		ByteOrder:     "little",
		TagSize:       modes.DefaultTagSize,
		Workers:       runtime.NumCPU(),
		Compress:      transform.CompressNone,
		LogDB:         "magma.db",
		APIListenAddr: ":7780",
		ConfigFile:    "magma", // searched as magma.yaml
	}
}

func defaultsMap(cfg *Config) map[string]any {
	return map[string]any{
		"mode":               cfg.Mode,
		"padding":            cfg.Padding,
		"sbox":               cfg.SBox,
		"byte_order":         cfg.ByteOrder,
		"key_hex":            cfg.KeyHex,
		"key_file":           cfg.KeyFile,
		"passphrase":         cfg.Passphrase,
		"salt":               cfg.Salt,
		"tag_size":           cfg.TagSize,
		"workers":            cfg.Workers,
		"compress":           cfg.Compress,
		"log_db":             cfg.LogDB,
		"api_listen_address": cfg.APIListenAddr,
		"config_file":        cfg.ConfigFile,
	}
}

// Load reads configFile (or magma.yaml from the search path when empty),
// then the environment.
func Load(configFile string) (*Config, error) {
	return LoadWithOverrides(configFile, nil)
}

// LoadWithOverrides is Load with explicit values, typically command line
// flags, taking precedence over everything else.
func LoadWithOverrides(configFile string, overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	for key, value := range defaultsMap(cfg) {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(cfg.ConfigFile)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/magma-go/")
		v.AddConfigPath("$HOME/.magma-go")
	}
	v.SetEnvPrefix("MAGMA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.ConfigFile = used
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings. Key material is only checked
// when Cipher is called.
func (cfg *Config) Validate() error {
	if _, err := cfg.ModeValue(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.PaddingValue(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := magma.ParseSBox(cfg.SBox); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.byteOrder(); err != nil {
		return err
	}
	if cfg.TagSize < 1 || cfg.TagSize > magma.BlockSize {
		return fmt.Errorf("config: %w: got %d", modes.ErrInvalidTagSize, cfg.TagSize)
	}
	if _, err := transform.NewCompressTransform(cfg.Compress); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (cfg *Config) ModeValue() (modes.Mode, error)       { return modes.ParseMode(cfg.Mode) }
func (cfg *Config) PaddingValue() (modes.Padding, error) { return modes.ParsePadding(cfg.Padding) }

func (cfg *Config) byteOrder() (binary.ByteOrder, error) {
	switch strings.ToLower(cfg.ByteOrder) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidByteOrder, cfg.ByteOrder)
	}
}

// keyBytes resolves the key in order key_hex, key_file, passphrase. A key
// file holds either 32 raw bytes or 64 hex digits.
func (cfg *Config) keyBytes() ([]byte, error) {
	switch {
	case cfg.KeyHex != "":
		key, err := hex.DecodeString(strings.TrimSpace(cfg.KeyHex))
		if err != nil {
			return nil, fmt.Errorf("%w: key_hex: %v", ErrInvalidKey, err)
		}
		return key, nil
	case cfg.KeyFile != "":
		raw, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: read key file: %w", err)
		}
		if len(raw) == magma.KeySize {
			return raw, nil
		}
		key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("%w: key file %s is neither %d raw bytes nor hex", ErrInvalidKey, cfg.KeyFile, magma.KeySize)
		}
		return key, nil
	case cfg.Passphrase != "":
		return transform.KeyFromPassphrase(cfg.Passphrase, []byte(cfg.Salt)), nil
	default:
		return nil, ErrNoKey
	}
}

// Cipher builds a keyed cipher with the configured S-box and byte order.
func (cfg *Config) Cipher() (*magma.Cipher, error) {
	key, err := cfg.keyBytes()
	if err != nil {
		return nil, err
	}
	return cfg.cipherWithKey(key)
}

func (cfg *Config) cipherWithKey(key []byte) (*magma.Cipher, error) {
	sbox, err := magma.ParseSBox(cfg.SBox)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	order, err := cfg.byteOrder()
	if err != nil {
		return nil, err
	}
	c := magma.New(magma.WithSubstitutionBox(sbox), magma.WithByteOrder(order))
	if err := c.SetKeyBytes(key); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Context builds a mode context for the configured mode.
func (cfg *Config) Context() (*modes.Context, error) {
	c, err := cfg.Cipher()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.ModeValue()
	if err != nil {
		return nil, err
	}
	padding, err := cfg.PaddingValue()
	if err != nil {
		return nil, err
	}
	return modes.NewContext(c, mode,
		modes.WithPadding(padding),
		modes.WithTagSize(cfg.TagSize),
		modes.WithWorkers(cfg.Workers))
}

// Pipeline builds the compress, encrypt and mac payload pipeline. The mac
// stage is keyed with transform.MACKey of the configured key.
func (cfg *Config) Pipeline() (*transform.PayloadProcessor, error) {
	key, err := cfg.keyBytes()
	if err != nil {
		return nil, err
	}
	c, err := cfg.cipherWithKey(key)
	if err != nil {
		return nil, err
	}
	macKey, err := transform.MACKey(key)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	macCipher, err := cfg.cipherWithKey(macKey)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.ModeValue()
	if err != nil {
		return nil, err
	}
	padding, err := cfg.PaddingValue()
	if err != nil {
		return nil, err
	}
	return transform.NewPipeline(transform.PipelineOptions{
		Cipher:    c,
		Mode:      mode,
		Padding:   padding,
		Workers:   cfg.Workers,
		Compress:  cfg.Compress,
		TagSize:   cfg.TagSize,
		MACCipher: macCipher,
	})
}
