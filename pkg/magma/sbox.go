package magma

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SBox is the substitution box of the cipher: eight 4-bit to 4-bit tables.
// Row i substitutes nibble i of the round sum, nibble 0 being the least
// significant. Each row must be a permutation of 0..15 for the cipher to be
// invertible; SetSubstitutionBox does not check this, Validate does.
type SBox [8][16]uint8

// ErrInvalidSBox is returned when a substitution box cannot be parsed or is
// not made of permutations.
var ErrInvalidSBox = errors.New("magma: invalid substitution box")

// SBoxTest is the test parameter set published with GOST R 34.11-94. It is
// the default table of every new Cipher.
var SBoxTest = SBox{
	{0x4, 0xA, 0x9, 0x2, 0xD, 0x8, 0x0, 0xE, 0x6, 0xB, 0x1, 0xC, 0x7, 0xF, 0x5, 0x3},
	{0xE, 0xB, 0x4, 0xC, 0x6, 0xD, 0xF, 0xA, 0x2, 0x3, 0x8, 0x1, 0x0, 0x7, 0x5, 0x9},
	{0x5, 0x8, 0x1, 0xD, 0xA, 0x3, 0x4, 0x2, 0xE, 0xF, 0xC, 0x7, 0x6, 0x0, 0x9, 0xB},
	{0x7, 0xD, 0xA, 0x1, 0x0, 0x8, 0x9, 0xF, 0xE, 0x4, 0x6, 0xC, 0xB, 0x2, 0x5, 0x3},
	{0x6, 0xC, 0x7, 0x1, 0x5, 0xF, 0xD, 0x8, 0x4, 0xA, 0x9, 0xE, 0x0, 0x3, 0xB, 0x2},
	{0x4, 0xB, 0xA, 0x0, 0x7, 0x2, 0x1, 0xD, 0x3, 0x6, 0x8, 0x5, 0x9, 0xC, 0xF, 0xE},
	{0xD, 0xB, 0x4, 0x1, 0x3, 0xF, 0x5, 0x9, 0x0, 0xA, 0xE, 0x7, 0x6, 0x8, 0x2, 0xC},
	{0x1, 0xF, 0xD, 0x0, 0x5, 0x7, 0xA, 0x4, 0x9, 0x2, 0x3, 0xE, 0x6, 0xB, 0x8, 0xC},
}

// SBoxTC26Z is id-tc26-gost-28147-param-Z, the fixed table of the Magma
// cipher in GOST R 34.12-2015 (RFC 8891).
var SBoxTC26Z = SBox{
	{12, 4, 6, 2, 10, 5, 11, 9, 14, 8, 13, 7, 0, 3, 15, 1},
	{6, 8, 2, 3, 9, 10, 5, 12, 1, 14, 4, 7, 11, 13, 0, 15},
	{11, 3, 5, 8, 2, 15, 10, 13, 14, 1, 7, 4, 12, 9, 6, 0},
	{12, 8, 2, 1, 13, 4, 15, 6, 7, 0, 10, 5, 3, 14, 9, 11},
	{7, 15, 5, 10, 8, 1, 6, 13, 0, 9, 3, 14, 11, 4, 2, 12},
	{5, 13, 15, 6, 9, 2, 12, 10, 11, 7, 8, 1, 4, 3, 14, 0},
	{8, 14, 2, 5, 6, 9, 1, 12, 15, 4, 11, 0, 13, 10, 3, 7},
	{1, 7, 14, 13, 0, 5, 8, 3, 4, 15, 10, 6, 9, 12, 11, 2},
}

var namedSBoxes = map[string]SBox{
	"test":   SBoxTest,
	"tc26-z": SBoxTC26Z,
}

// SBoxFromNibbles builds a table from 128 nibble values, row by row.
func SBoxFromNibbles(nibbles []uint8) (SBox, error) {
	var s SBox
	if len(nibbles) != 128 {
		return s, fmt.Errorf("%w: need 128 nibbles, got %d", ErrInvalidSBox, len(nibbles))
	}
	for i, v := range nibbles {
		if v > 0xF {
			return s, fmt.Errorf("%w: value %#x at %d is not a nibble", ErrInvalidSBox, v, i)
		}
		s[i/16][i%16] = v
	}
	return s, nil
}

// ParseSBox resolves a parameter set name ("test", "tc26-z") or 128 hex
// digits, one digit per table entry.
func ParseSBox(spec string) (SBox, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if s, ok := namedSBoxes[spec]; ok {
		return s, nil
	}
	digits := strings.Join(strings.Fields(spec), "")
	if len(digits) != 128 {
		return SBox{}, fmt.Errorf("%w: unknown parameter set %q", ErrInvalidSBox, spec)
	}
	nibbles := make([]uint8, 0, 128)
	for i := 0; i < len(digits); i++ {
		v, err := strconv.ParseUint(digits[i:i+1], 16, 8)
		if err != nil {
			return SBox{}, fmt.Errorf("%w: %v", ErrInvalidSBox, err)
		}
		nibbles = append(nibbles, uint8(v))
	}
	return SBoxFromNibbles(nibbles)
}

// Nibbles flattens the table row by row.
func (s SBox) Nibbles() []uint8 {
	out := make([]uint8, 0, 128)
	for _, row := range s {
		out = append(out, row[:]...)
	}
	return out
}

// Validate reports whether every row is a permutation of 0..15.
func (s SBox) Validate() error {
	for i, row := range s {
		var seen uint16
		for _, v := range row {
			if v > 0xF {
				return fmt.Errorf("%w: row %d holds %#x", ErrInvalidSBox, i, v)
			}
			seen |= 1 << v
		}
		if seen != 0xFFFF {
			return fmt.Errorf("%w: row %d is not a permutation", ErrInvalidSBox, i)
		}
	}
	return nil
}
