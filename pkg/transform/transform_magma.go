package transform

import (
	"crypto/rand"
	"fmt"
	"io"

	"magma-go/pkg/modes"
)

// randReader is swapped by tests that need fixed IVs.
var randReader io.Reader = rand.Reader

type magmaTransform struct {
	ctx *modes.Context
}

// NewMagmaTransform encrypts with c in the given mode. Modes that chain get
// a fresh random IV per Apply, written in front of the ciphertext.
func NewMagmaTransform(c modes.BlockCipher, mode modes.Mode, opts ...modes.Option) (Transform, error) {
	if mode == modes.MAC {
		return nil, fmt.Errorf("magma transform: %w: use NewMACTransform", modes.ErrUnsupportedMode)
	}
	ctx, err := modes.NewContext(c, mode, opts...)
	if err != nil {
		return nil, fmt.Errorf("magma transform: %w", err)
	}
	return &magmaTransform{ctx: ctx}, nil
}

func (m *magmaTransform) Apply(plaintext []byte) ([]byte, error) {
	if !m.ctx.Mode().NeedsIV() {
		return m.ctx.Encrypt(nil, plaintext)
	}
	iv := make([]byte, modes.BlockSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, fmt.Errorf("magma apply (encrypt): failed to generate iv: %w", err)
	}
	ct, err := m.ctx.Encrypt(iv, plaintext)
	if err != nil {
		return nil, fmt.Errorf("magma apply (encrypt): %w", err)
	}
	return append(iv, ct...), nil
}

func (m *magmaTransform) Reverse(data []byte) ([]byte, error) {
	if !m.ctx.Mode().NeedsIV() {
		return m.ctx.Decrypt(nil, data)
	}
	if len(data) < modes.BlockSize {
		return nil, fmt.Errorf("magma reverse (decrypt): %w: %d bytes, no room for iv", ErrShortPayload, len(data))
	}
	pt, err := m.ctx.Decrypt(data[:modes.BlockSize], data[modes.BlockSize:])
	if err != nil {
		return nil, fmt.Errorf("magma reverse (decrypt): %w", err)
	}
	return pt, nil
}
