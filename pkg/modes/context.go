package modes

import (
	"fmt"

	"magma-go/pkg/log"
	"magma-go/pkg/magma"
)

// BlockCipher is the single-block primitive the modes are built on.
// *magma.Cipher implements it.
type BlockCipher interface {
	EncryptBlock(block uint64) uint64
	DecryptBlock(block uint64) uint64
	// MACBlock is the reduced cycle used by WithGOSTCycle.
	MACBlock(block uint64) uint64
	LoadBlock(b []byte) uint64
	StoreBlock(b []byte, block uint64)
}

const (
	BlockSize      = magma.BlockSize
	DefaultTagSize = 4
)

// Context binds a cipher to a mode. It holds no chaining state: every call
// starts from the IV it is given, so a Context can be shared between
// goroutines as long as the cipher's key is not replaced meanwhile.
type Context struct {
	cipher  BlockCipher
	mode    Mode
	padding Padding
	tagSize int
	workers int

	gostCycle bool
}

type Option func(*Context)

// WithPadding sets the padding scheme for ECB and CBC. PaddingZeros cannot
// be told apart from trailing zero plaintext, so decryption keeps it and
// the round trip only holds for PaddingNone, PaddingPKCS7 and PaddingISO7816.
func WithPadding(p Padding) Option {
	return func(ctx *Context) { ctx.padding = p }
}

// WithTagSize sets the MAC length in bytes.
func WithTagSize(n int) Option {
	return func(ctx *Context) { ctx.tagSize = n }
}

// WithGOSTCycle makes the MAC mode chain through the 16-round cycle of
// GOST 28147-89 (Cipher.MACBlock) instead of full encryption.
func WithGOSTCycle() Option {
	return func(ctx *Context) { ctx.gostCycle = true }
}

// WithWorkers lets the parallelizable directions (ECB, CBC and CFB
// decryption) spread blocks over n goroutines.
func WithWorkers(n int) Option {
	return func(ctx *Context) { ctx.workers = n }
}

func NewContext(c BlockCipher, mode Mode, opts ...Option) (*Context, error) {
	if c == nil {
		return nil, fmt.Errorf("modes: cipher implementation cannot be nil")
	}
	if _, ok := modeNames[mode]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMode, mode)
	}
	ctx := &Context{
		cipher:  c,
		mode:    mode,
		padding: PaddingNone,
		tagSize: DefaultTagSize,
		workers: 1,
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if _, ok := paddingNames[ctx.padding]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPadding, ctx.padding)
	}
	if ctx.tagSize < 1 || ctx.tagSize > BlockSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTagSize, ctx.tagSize)
	}
	if ctx.workers < 1 {
		ctx.workers = 1
	}
	return ctx, nil
}

func (ctx *Context) Mode() Mode       { return ctx.mode }
func (ctx *Context) Padding() Padding { return ctx.padding }
func (ctx *Context) TagSize() int     { return ctx.tagSize }
func (ctx *Context) GOSTCycle() bool  { return ctx.gostCycle }

// Encrypt is Process(Encrypt, iv, src).
func (ctx *Context) Encrypt(iv, src []byte) ([]byte, error) {
	return ctx.Process(Encrypt, iv, src)
}

// Decrypt is Process(Decrypt, iv, src).
func (ctx *Context) Decrypt(iv, src []byte) ([]byte, error) {
	return ctx.Process(Decrypt, iv, src)
}

// Process runs op over src and returns a new buffer. ECB ignores iv; CBC,
// CFB and OFB need an 8-byte iv supplied by the caller. On error no output
// is returned.
func (ctx *Context) Process(op Operation, iv, src []byte) ([]byte, error) {
	if op != Encrypt && op != Decrypt {
		return nil, fmt.Errorf("modes: unknown operation %v", op)
	}
	if ctx.mode == MAC {
		return nil, fmt.Errorf("%w: %v has no %v operation, use Sum", ErrUnsupportedMode, ctx.mode, op)
	}
	if ctx.mode.NeedsIV() && len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: got %d bytes for %v", ErrInvalidIV, len(iv), ctx.mode)
	}

	log.Debug().
		Str("mode", ctx.mode.String()).
		Str("op", op.String()).
		Int("bytes", len(src)).
		Int("workers", ctx.workers).
		Msg("processing buffer")

	switch ctx.mode {
	case ECB, CBC:
		if op == Encrypt {
			return ctx.encryptBlocks(iv, src)
		}
		return ctx.decryptBlocks(iv, src)
	case CFB:
		if op == Encrypt {
			return ctx.encryptCFB(iv, src), nil
		}
		return ctx.decryptCFB(iv, src), nil
	case OFB:
		return ctx.xorOFB(iv, src), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMode, ctx.mode)
	}
}

func (ctx *Context) encryptBlocks(iv, src []byte) ([]byte, error) {
	data, err := pad(src, ctx.padding, BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%v encrypt: %w", ctx.mode, err)
	}
	dst := make([]byte, len(data))
	c := ctx.cipher
	n := len(data) / BlockSize

	if ctx.mode == ECB {
		ctx.forEachBlock(n, func(i int) {
			off := i * BlockSize
			c.StoreBlock(dst[off:], c.EncryptBlock(c.LoadBlock(data[off:])))
		})
		return dst, nil
	}

	state := c.LoadBlock(iv)
	for off := 0; off < len(data); off += BlockSize {
		state = c.EncryptBlock(c.LoadBlock(data[off:]) ^ state)
		c.StoreBlock(dst[off:], state)
	}
	return dst, nil
}

func (ctx *Context) decryptBlocks(iv, src []byte) ([]byte, error) {
	if len(src)%BlockSize != 0 {
		return nil, fmt.Errorf("%v decrypt: %w: %d bytes", ctx.mode, ErrUnaligned, len(src))
	}
	dst := make([]byte, len(src))
	c := ctx.cipher
	n := len(src) / BlockSize

	if ctx.mode == ECB {
		ctx.forEachBlock(n, func(i int) {
			off := i * BlockSize
			c.StoreBlock(dst[off:], c.DecryptBlock(c.LoadBlock(src[off:])))
		})
	} else {
		// Every CBC plaintext block only needs two ciphertext blocks.
		ctx.forEachBlock(n, func(i int) {
			off := i * BlockSize
			prev := c.LoadBlock(iv)
			if i > 0 {
				prev = c.LoadBlock(src[off-BlockSize:])
			}
			c.StoreBlock(dst[off:], c.DecryptBlock(c.LoadBlock(src[off:]))^prev)
		})
	}

	out, err := unpad(dst, ctx.padding, BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%v decrypt: %w", ctx.mode, err)
	}
	return out, nil
}

// xorKeystream xors src with the stored form of ks into dst; src may be
// shorter than a block.
func (ctx *Context) xorKeystream(dst, src []byte, ks uint64) {
	var buf [BlockSize]byte
	ctx.cipher.StoreBlock(buf[:], ks)
	for i := range src {
		dst[i] = src[i] ^ buf[i]
	}
}

func (ctx *Context) encryptCFB(iv, src []byte) []byte {
	dst := make([]byte, len(src))
	c := ctx.cipher
	state := c.LoadBlock(iv)
	for off := 0; off < len(src); off += BlockSize {
		end := min(off+BlockSize, len(src))
		ctx.xorKeystream(dst[off:end], src[off:end], c.EncryptBlock(state))
		if end-off == BlockSize {
			state = c.LoadBlock(dst[off:])
		}
	}
	return dst
}

func (ctx *Context) decryptCFB(iv, src []byte) []byte {
	dst := make([]byte, len(src))
	c := ctx.cipher
	n := (len(src) + BlockSize - 1) / BlockSize
	ctx.forEachBlock(n, func(i int) {
		off := i * BlockSize
		end := min(off+BlockSize, len(src))
		state := c.LoadBlock(iv)
		if i > 0 {
			state = c.LoadBlock(src[off-BlockSize:])
		}
		ctx.xorKeystream(dst[off:end], src[off:end], c.EncryptBlock(state))
	})
	return dst
}

// xorOFB is its own inverse: the keystream never depends on the data.
func (ctx *Context) xorOFB(iv, src []byte) []byte {
	dst := make([]byte, len(src))
	c := ctx.cipher
	state := c.LoadBlock(iv)
	for off := 0; off < len(src); off += BlockSize {
		end := min(off+BlockSize, len(src))
		state = c.EncryptBlock(state)
		ctx.xorKeystream(dst[off:end], src[off:end], state)
	}
	return dst
}
