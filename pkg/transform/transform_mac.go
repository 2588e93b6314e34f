package transform

import (
	"crypto/subtle"
	"fmt"

	"magma-go/pkg/modes"
)

type macTransform struct {
	ctx *modes.Context
}

// NewMACTransform appends a tagSize-byte MAC on Apply and checks and
// strips it on Reverse.
func NewMACTransform(c modes.BlockCipher, tagSize int) (Transform, error) {
	ctx, err := modes.NewContext(c, modes.MAC, modes.WithTagSize(tagSize))
	if err != nil {
		return nil, fmt.Errorf("mac transform: %w", err)
	}
	return &macTransform{ctx: ctx}, nil
}

func (m *macTransform) Apply(data []byte) ([]byte, error) {
	tag, err := m.ctx.Sum(data)
	if err != nil {
		return nil, fmt.Errorf("mac apply: %w", err)
	}
	out := make([]byte, 0, len(data)+len(tag))
	out = append(out, data...)
	return append(out, tag...), nil
}

func (m *macTransform) Reverse(data []byte) ([]byte, error) {
	n := m.ctx.TagSize()
	if len(data) <= n {
		return nil, fmt.Errorf("mac reverse: %w: %d bytes for a %d-byte tag", ErrShortPayload, len(data), n)
	}
	body, tag := data[:len(data)-n], data[len(data)-n:]
	want, err := m.ctx.Sum(body)
	if err != nil {
		return nil, fmt.Errorf("mac reverse: %w", err)
	}
	if subtle.ConstantTimeCompare(tag, want) != 1 {
		return nil, ErrTagMismatch
	}
	return body, nil
}
