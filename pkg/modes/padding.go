package modes

import (
	"fmt"
	"strings"
)

// Padding selects how ECB and CBC complete a partial last block. The
// stream modes (CFB, OFB) never pad.
type Padding int

const (
	// PaddingNone rejects input that is not block aligned.
	PaddingNone Padding = iota
	// PaddingZeros fills up to the next block boundary with zero bytes.
	// Decryption cannot tell padding from data and leaves the zeros in place.
	PaddingZeros
	// PaddingPKCS7 always appends 1..8 bytes holding the pad length.
	PaddingPKCS7
	// PaddingISO7816 always appends 0x80 followed by zeros (GOST R 34.13-2015
	// procedure 2).
	PaddingISO7816
)

var paddingNames = map[Padding]string{
	PaddingNone:    "none",
	PaddingZeros:   "zeros",
	PaddingPKCS7:   "pkcs7",
	PaddingISO7816: "iso7816",
}

func (p Padding) String() string {
	if s, ok := paddingNames[p]; ok {
		return s
	}
	return fmt.Sprintf("padding(%d)", int(p))
}

func ParsePadding(s string) (Padding, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return PaddingNone, nil
	}
	for p, n := range paddingNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown scheme %q", ErrInvalidPadding, s)
}

// pad returns a copy of data completed to a whole number of blocks.
func pad(data []byte, p Padding, blockSize int) ([]byte, error) {
	rem := len(data) % blockSize
	switch p {
	case PaddingNone:
		if rem != 0 {
			return nil, fmt.Errorf("%w: %d bytes", ErrUnaligned, len(data))
		}
		return data, nil
	case PaddingZeros:
		if rem == 0 {
			return data, nil
		}
		out := make([]byte, len(data)+blockSize-rem)
		copy(out, data)
		return out, nil
	case PaddingPKCS7:
		n := blockSize - rem
		out := make([]byte, len(data)+n)
		copy(out, data)
		for i := len(data); i < len(out); i++ {
			out[i] = byte(n)
		}
		return out, nil
	case PaddingISO7816:
		out := make([]byte, len(data)+blockSize-rem)
		copy(out, data)
		out[len(data)] = 0x80
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidPadding, p)
	}
}

// unpad strips padding added by pad. Zero padding is left in place.
func unpad(data []byte, p Padding, blockSize int) ([]byte, error) {
	switch p {
	case PaddingNone, PaddingZeros:
		return data, nil
	case PaddingPKCS7:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty input", ErrInvalidPadding)
		}
		n := int(data[len(data)-1])
		if n == 0 || n > blockSize || n > len(data) {
			return nil, fmt.Errorf("%w: pad length %d", ErrInvalidPadding, n)
		}
		for _, b := range data[len(data)-n:] {
			if int(b) != n {
				return nil, fmt.Errorf("%w: inconsistent pad bytes", ErrInvalidPadding)
			}
		}
		return data[:len(data)-n], nil
	case PaddingISO7816:
		floor := len(data) - blockSize
		i := len(data) - 1
		for i >= 0 && i >= floor && data[i] == 0x00 {
			i--
		}
		if i < 0 || i < floor || data[i] != 0x80 {
			return nil, fmt.Errorf("%w: missing 0x80 marker", ErrInvalidPadding)
		}
		return data[:i], nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidPadding, p)
	}
}
