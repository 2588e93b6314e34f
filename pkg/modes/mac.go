package modes

import "fmt"

// Sum computes the MAC of src. The state starts at zero and absorbs each
// block as state = E(block ^ state); a partial last block is zero padded.
// The tag is the first TagSize bytes of the stored final state.
//
// With WithGOSTCycle the state goes through the 16-round imitovstavka cycle
// of GOST 28147-89 instead of full encryption, and a one-block message is
// followed by a zero block, since that standard asks for at least two.
func (ctx *Context) Sum(src []byte) ([]byte, error) {
	if ctx.mode != MAC {
		return nil, fmt.Errorf("%w: Sum needs the mac mode, context is %v", ErrUnsupportedMode, ctx.mode)
	}
	if len(src) == 0 {
		return nil, fmt.Errorf("mac: %w", ErrEmptyInput)
	}

	c := ctx.cipher
	step := c.EncryptBlock
	if ctx.gostCycle {
		step = c.MACBlock
	}

	var state uint64
	var block [BlockSize]byte
	for off := 0; off < len(src); off += BlockSize {
		end := min(off+BlockSize, len(src))
		clear(block[:])
		copy(block[:], src[off:end])
		state = step(c.LoadBlock(block[:]) ^ state)
	}
	if ctx.gostCycle && len(src) <= BlockSize {
		state = step(state)
	}

	c.StoreBlock(block[:], state)
	tag := make([]byte, ctx.tagSize)
	copy(tag, block[:ctx.tagSize])
	return tag, nil
}
