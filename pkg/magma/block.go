package magma

import "crypto/cipher"

var _ cipher.Block = (*Cipher)(nil)

// BlockSize returns the block size in bytes.
func (c *Cipher) BlockSize() int { return BlockSize }

// LoadBlock reads the first 8 bytes of b as a block in the cipher's byte order.
func (c *Cipher) LoadBlock(b []byte) uint64 {
	return c.order.Uint64(b)
}

// StoreBlock writes block into the first 8 bytes of b.
func (c *Cipher) StoreBlock(b []byte, block uint64) {
	c.order.PutUint64(b, block)
}

// Encrypt encrypts the first block of src into dst. dst and src may overlap
// entirely.
func (c *Cipher) Encrypt(dst, src []byte) {
	if len(src) < BlockSize || len(dst) < BlockSize {
		panic("magma: input not full block")
	}
	c.StoreBlock(dst, c.EncryptBlock(c.LoadBlock(src)))
}

// Decrypt decrypts the first block of src into dst.
func (c *Cipher) Decrypt(dst, src []byte) {
	if len(src) < BlockSize || len(dst) < BlockSize {
		panic("magma: input not full block")
	}
	c.StoreBlock(dst, c.DecryptBlock(c.LoadBlock(src)))
}
