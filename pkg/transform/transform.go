// Package transform chains reversible payload stages (compression,
// encryption, authentication) into a pipeline.
package transform

import "errors"

var (
	ErrTagMismatch  = errors.New("transform: mac tag mismatch")
	ErrShortPayload = errors.New("transform: payload too short")
)

type Transform interface {
	Apply(data []byte) ([]byte, error)
	Reverse(data []byte) ([]byte, error)
}

type noOpTransform struct{}

func NewNoOpTransform() Transform                            { return &noOpTransform{} }
func (n *noOpTransform) Apply(data []byte) ([]byte, error)   { return data, nil }
func (n *noOpTransform) Reverse(data []byte) ([]byte, error) { return data, nil }
