// Package modes applies a 64-bit block primitive to byte buffers of any
// length: ECB, CBC, CFB, OFB and the GOST 28147-89 MAC.
package modes

import (
	"errors"
	"fmt"
	"strings"
)

type Mode int

const (
	ECB Mode = iota
	CBC
	CFB
	OFB
	MAC
)

var modeNames = map[Mode]string{
	ECB: "ecb",
	CBC: "cbc",
	CFB: "cfb",
	OFB: "ofb",
	MAC: "mac",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// NeedsIV reports whether the mode is seeded from an initialization vector.
func (m Mode) NeedsIV() bool {
	return m == CBC || m == CFB || m == OFB
}

// BlockAligned reports whether the mode only handles whole blocks.
func (m Mode) BlockAligned() bool {
	return m == ECB || m == CBC
}

// ParseMode resolves a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

type Operation int

const (
	Encrypt Operation = iota
	Decrypt
)

func (op Operation) String() string {
	switch op {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

var (
	ErrUnsupportedMode = errors.New("modes: unsupported mode")
	ErrUnaligned       = errors.New("modes: input is not a multiple of the block size")
	ErrInvalidIV       = errors.New("modes: IV length must equal block size")
	ErrInvalidPadding  = errors.New("modes: invalid padding")
	ErrInvalidTagSize  = errors.New("modes: tag size must be between 1 and 8 bytes")
	ErrEmptyInput      = errors.New("modes: empty input")
)
