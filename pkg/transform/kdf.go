package transform

import (
	"crypto/sha256"
	"io"

	"magma-go/pkg/magma"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const PBKDF2Iterations = 100_000

// DefaultSalt is used when the configuration gives none. A per-deployment
// salt should be preferred.
var DefaultSalt = []byte("magma-go")

var macKeyInfo = []byte("magma-go mac key")

// KeyFromPassphrase derives a 32-byte Magma key with PBKDF2-HMAC-SHA256.
func KeyFromPassphrase(passphrase string, salt []byte) []byte {
	if len(salt) == 0 {
		salt = DefaultSalt
	}
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, magma.KeySize, sha256.New)
}

// MACKey derives the pipeline's MAC key from the encryption key with
// HKDF-SHA256, so the CBC-MAC never runs under the CBC encryption key.
func MACKey(key []byte) ([]byte, error) {
	out := make([]byte, magma.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, macKeyInfo), out); err != nil {
		return nil, err
	}
	return out, nil
}
