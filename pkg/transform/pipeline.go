package transform

import (
	"fmt"
	"strings"

	"magma-go/pkg/log"
	"magma-go/pkg/modes"

	"github.com/klauspost/compress/zstd"
)

// Compression names accepted by PipelineOptions.Compress.
const (
	CompressNone = "none"
	CompressGzip = "gzip"
	CompressZstd = "zstd"
)

type PipelineOptions struct {
	Cipher  modes.BlockCipher
	Mode    modes.Mode
	Padding modes.Padding
	Workers int
	// Compress is "", "none", "gzip" or "zstd".
	Compress string
	// TagSize > 0 appends a MAC over the ciphertext.
	TagSize int
	// MACCipher keys the MAC stage. nil reuses Cipher, which makes the MAC
	// a CBC-MAC under the encryption key; callers holding the raw key should
	// pass a cipher keyed with MACKey instead.
	MACCipher modes.BlockCipher
}

// NewCompressTransform maps a compression name to its transform.
func NewCompressTransform(name string) (Transform, error) {
	switch strings.ToLower(name) {
	case "", CompressNone:
		return NewNoOpTransform(), nil
	case CompressGzip:
		return NewGzipTransform(), nil
	case CompressZstd:
		return NewZstdTransform(zstd.SpeedDefault)
	default:
		return nil, fmt.Errorf("transform: unknown compression %q", name)
	}
}

// NewPipeline builds compress, encrypt and (optionally) mac stages.
func NewPipeline(o PipelineOptions) (*PayloadProcessor, error) {
	if o.Cipher == nil {
		return nil, fmt.Errorf("transform: pipeline needs a cipher")
	}

	compress, err := NewCompressTransform(o.Compress)
	if err != nil {
		return nil, err
	}
	encrypt, err := NewMagmaTransform(o.Cipher, o.Mode, modes.WithPadding(o.Padding), modes.WithWorkers(o.Workers))
	if err != nil {
		return nil, err
	}
	stages := []Transform{compress, encrypt}

	if o.TagSize > 0 {
		macCipher := o.MACCipher
		if macCipher == nil {
			macCipher = o.Cipher
		}
		mac, err := NewMACTransform(macCipher, o.TagSize)
		if err != nil {
			return nil, err
		}
		stages = append(stages, mac)
	}

	log.Debug().
		Str("mode", o.Mode.String()).
		Str("padding", o.Padding.String()).
		Str("compress", o.Compress).
		Int("tag_size", o.TagSize).
		Msg("pipeline built")
	return NewPayloadProcessor(stages)
}
