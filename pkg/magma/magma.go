// Package magma implements the GOST 28147-89 block cipher ("Magma"):
// 64-bit blocks, 256-bit keys, 32 Feistel rounds of modular addition,
// nibble substitution and an 11-bit rotation.
//
// A block is handled as a uint64 whose low 32 bits are the N1 register of
// the standard (the half fed to the round function) and whose high 32 bits
// are N2. Keys are eight 32-bit words; word 0 is the least significant word
// of the 256-bit key as the standard writes it (k8||...||k1).
//
// A configured Cipher is read-only during EncryptBlock/DecryptBlock and may be
// shared between goroutines. SetKey, SetKeyBytes and SetSubstitutionBox
// mutate it in place and must not run concurrently with block operations.
package magma

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

const (
	BlockSize = 8  // bytes
	KeySize   = 32 // bytes
	KeyWords  = 8
	Rounds    = 32
	macRounds = 16
)

// ErrInvalidKeySize is returned for byte keys that are not exactly 32 bytes.
var ErrInvalidKeySize = errors.New("magma: invalid key size, must be 32 bytes")

// roundKeyPosition maps round index to key word: three forward passes over
// the eight words, then one pass in reverse.
var roundKeyPosition = [Rounds]uint8{
	0, 1, 2, 3, 4, 5, 6, 7,
	0, 1, 2, 3, 4, 5, 6, 7,
	0, 1, 2, 3, 4, 5, 6, 7,
	7, 6, 5, 4, 3, 2, 1, 0,
}

// Cipher is one GOST 28147-89 instance with its own key, round keys and
// substitution box.
type Cipher struct {
	key       [KeyWords]uint32
	roundKeys [Rounds]uint32
	sbox      SBox
	// lookup merges pairs of S-box rows into byte tables, shifted into place.
	lookup [4][256]uint32
	order  binary.ByteOrder
}

// Option configures a Cipher at construction.
type Option func(*Cipher)

// WithSubstitutionBox installs s instead of SBoxTest.
func WithSubstitutionBox(s SBox) Option {
	return func(c *Cipher) { c.SetSubstitutionBox(s) }
}

// WithByteOrder selects how bytes map onto words for keys and blocks.
// binary.LittleEndian (the default) follows GOST 28147-89 and RFC 5830,
// binary.BigEndian follows GOST R 34.12-2015 and RFC 8891.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(c *Cipher) {
		if order != nil {
			c.order = order
		}
	}
}

// WithKey installs key words at construction.
func WithKey(key [KeyWords]uint32) Option {
	return func(c *Cipher) { c.SetKey(key) }
}

// New returns a cipher with an all-zero key and the default S-box.
func New(opts ...Option) *Cipher {
	c := &Cipher{order: binary.LittleEndian}
	c.SetSubstitutionBox(SBoxTest)
	c.prepareRoundKeys()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCipher returns a little-endian cipher with the default S-box keyed with
// a 32-byte key, usable wherever a crypto/cipher.Block is expected.
func NewCipher(key []byte) (*Cipher, error) {
	c := New()
	if err := c.SetKeyBytes(key); err != nil {
		return nil, err
	}
	return c, nil
}

// SetKey installs key and derives the round keys.
func (c *Cipher) SetKey(key [KeyWords]uint32) {
	c.key = key
	c.prepareRoundKeys()
}

// SetKeyBytes installs a 32-byte key read as eight words in the cipher's
// byte order. On error the previous key stays in place.
func (c *Cipher) SetKeyBytes(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	var words [KeyWords]uint32
	for i := range words {
		words[i] = c.order.Uint32(key[i*4:])
	}
	c.SetKey(words)
	return nil
}

// SetSubstitutionBox replaces the S-box wholesale. Rows are expected to be
// permutations of 0..15; see SBox.Validate.
func (c *Cipher) SetSubstitutionBox(s SBox) {
	c.sbox = s
	for k := 0; k < 4; k++ {
		lo, hi := s[2*k], s[2*k+1]
		for i := 0; i < 256; i++ {
			v := uint32(lo[i&0x0F]&0x0F) | uint32(hi[i>>4]&0x0F)<<4
			c.lookup[k][i] = v << (8 * uint(k))
		}
	}
}

func (c *Cipher) prepareRoundKeys() {
	for i, pos := range roundKeyPosition {
		c.roundKeys[i] = c.key[pos]
	}
}

// Key returns the installed key words.
func (c *Cipher) Key() [KeyWords]uint32 { return c.key }

// RoundKeys returns the derived schedule K1..K32.
func (c *Cipher) RoundKeys() [Rounds]uint32 { return c.roundKeys }

// SubstitutionBox returns a copy of the installed S-box.
func (c *Cipher) SubstitutionBox() SBox { return c.sbox }

// ByteOrder returns the byte order used for keys and blocks.
func (c *Cipher) ByteOrder() binary.ByteOrder { return c.order }

// f is the round function: add the round key, substitute, rotate by 11.
func (c *Cipher) f(n1, k uint32) uint32 {
	x := n1 + k
	x = c.lookup[0][x&0xFF] |
		c.lookup[1][(x>>8)&0xFF] |
		c.lookup[2][(x>>16)&0xFF] |
		c.lookup[3][x>>24]
	return bits.RotateLeft32(x, 11)
}

// EncryptBlock runs the 32 rounds with K1..K32. Keys printed k8 first, as
// in the GOST R 34.11-94 hash-step examples, must be loaded k1 first.
func (c *Cipher) EncryptBlock(block uint64) uint64 {
	n1, n2 := uint32(block), uint32(block>>32)
	for i := 0; i < Rounds; i++ {
		n1, n2 = n2^c.f(n1, c.roundKeys[i]), n1
	}
	// The last round does not swap; undo the swap done by the loop.
	return uint64(n1)<<32 | uint64(n2)
}

// DecryptBlock runs the same network with K32..K1.
func (c *Cipher) DecryptBlock(block uint64) uint64 {
	n1, n2 := uint32(block), uint32(block>>32)
	for i := Rounds - 1; i >= 0; i-- {
		n1, n2 = n2^c.f(n1, c.roundKeys[i]), n1
	}
	return uint64(n1)<<32 | uint64(n2)
}

// MACBlock is the GOST 28147-89 imitovstavka cycle: K1..K8 twice, every round
// swapping the halves.
func (c *Cipher) MACBlock(block uint64) uint64 {
	n1, n2 := uint32(block), uint32(block>>32)
	for i := 0; i < macRounds; i++ {
		n1, n2 = n2^c.f(n1, c.roundKeys[i]), n1
	}
	return uint64(n2)<<32 | uint64(n1)
}
