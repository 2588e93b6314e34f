package magma

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"
)

var scheduleKey = [KeyWords]uint32{
	0x733D2C20, 0x65686573, 0x74746769, 0x79676120,
	0x626E7373, 0x20657369, 0x326C6568, 0x33206D54,
}

// reversed turns a key written as the standard prints it (k8 first) into
// words with k1 first.
func reversed(w [KeyWords]uint32) [KeyWords]uint32 {
	var out [KeyWords]uint32
	for i := range w {
		out[i] = w[KeyWords-1-i]
	}
	return out
}

func TestNewDefaults(t *testing.T) {
	c := New()
	if c.Key() != ([KeyWords]uint32{}) {
		t.Errorf("new cipher key = %x, want zero", c.Key())
	}
	if c.RoundKeys() != ([Rounds]uint32{}) {
		t.Errorf("new cipher round keys = %x, want zero", c.RoundKeys())
	}
	if c.SubstitutionBox() != SBoxTest {
		t.Errorf("new cipher does not use the test S-box")
	}
	if c.ByteOrder() != binary.LittleEndian {
		t.Errorf("default byte order = %v, want little endian", c.ByteOrder())
	}
}

func TestRoundKeyDistribution(t *testing.T) {
	c := New()
	c.SetKey(scheduleKey)

	want := [Rounds]uint32{
		0x733D2C20, 0x65686573, 0x74746769, 0x79676120, 0x626E7373, 0x20657369, 0x326C6568, 0x33206D54,
		0x733D2C20, 0x65686573, 0x74746769, 0x79676120, 0x626E7373, 0x20657369, 0x326C6568, 0x33206D54,
		0x733D2C20, 0x65686573, 0x74746769, 0x79676120, 0x626E7373, 0x20657369, 0x326C6568, 0x33206D54,
		0x33206D54, 0x326C6568, 0x20657369, 0x626E7373, 0x79676120, 0x74746769, 0x65686573, 0x733D2C20,
	}
	if got := c.RoundKeys(); got != want {
		t.Fatalf("round keys mismatch:\n got %08X\nwant %08X", got, want)
	}
}

func TestSetKeyBytes(t *testing.T) {
	keyBytes := []byte{
		0x20, 0x2C, 0x3D, 0x73,
		0x73, 0x65, 0x68, 0x65,
		0x69, 0x67, 0x74, 0x74,
		0x20, 0x61, 0x67, 0x79,
		0x73, 0x73, 0x6E, 0x62,
		0x69, 0x73, 0x65, 0x20,
		0x68, 0x65, 0x6C, 0x32,
		0x54, 0x6D, 0x20, 0x33,
	}
	c := New()
	if err := c.SetKeyBytes(keyBytes); err != nil {
		t.Fatalf("SetKeyBytes failed: %v", err)
	}
	if c.Key() != scheduleKey {
		t.Errorf("little endian key = %08X, want %08X", c.Key(), scheduleKey)
	}

	byWords := New(WithKey(scheduleKey))
	if c.RoundKeys() != byWords.RoundKeys() {
		t.Errorf("byte and word keys derive different schedules")
	}
}

func TestSetKeyBytesInvalidSizeKeepsState(t *testing.T) {
	c := New(WithKey(scheduleKey))
	before := c.EncryptBlock(0)

	for _, n := range []int{0, 16, 31, 33, 64} {
		err := c.SetKeyBytes(make([]byte, n))
		if !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("SetKeyBytes(%d bytes) error = %v, want ErrInvalidKeySize", n, err)
		}
	}
	if c.Key() != scheduleKey {
		t.Errorf("failed SetKeyBytes replaced the key")
	}
	if got := c.EncryptBlock(0); got != before {
		t.Errorf("failed SetKeyBytes changed output: %016X != %016X", got, before)
	}

	if _, err := NewCipher(make([]byte, 10)); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("NewCipher error = %v, want ErrInvalidKeySize", err)
	}
}

// Keys and expected outputs from the GOST R 34.11-94 worked example, where
// each step encrypts a zero block under K1..K4.
func TestKnownAnswerHashStep(t *testing.T) {
	cases := []struct {
		name string
		key  [KeyWords]uint32
		want uint64
	}{
		{"K1", [KeyWords]uint32{0x733D2C20, 0x65686573, 0x74746769, 0x79676120, 0x626E7373, 0x20657369, 0x326C6568, 0x33206D54}, 0x42ABBCCE32BC0B1B},
		{"K2", [KeyWords]uint32{0x110C733D, 0x0D166568, 0x130E7474, 0x06417967, 0x1D00626E, 0x161A2065, 0x090D326C, 0x4D393320}, 0x5203EBC85D9BCFFD},
		{"K3", [KeyWords]uint32{0x80B111F3, 0x730DF216, 0x850013F1, 0xC7E1F941, 0x620C1DFF, 0x3ABAE91A, 0x3FA109F2, 0xF513B239}, 0x8D34589900FF0E28},
		{"K4", [KeyWords]uint32{0xA0E2804E, 0xFF1B73F2, 0xECE27A00, 0xE7B8C7E1, 0xEE1D620C, 0xAC0CC5BA, 0xA804C05E, 0xA18B0AEC}, 0xE78604190D2A562D},
	}
	for _, tc := range cases {
		c := New(WithKey(reversed(tc.key)))
		got := c.EncryptBlock(0)
		if got != tc.want {
			t.Errorf("%s: E(0) = %016X, want %016X", tc.name, got, tc.want)
		}
		if back := c.DecryptBlock(got); back != 0 {
			t.Errorf("%s: D(E(0)) = %016X, want 0", tc.name, back)
		}
	}
}

// GOST R 34.12-2015 / RFC 8891 Magma example.
func TestKnownAnswerRFC8891(t *testing.T) {
	key, _ := hex.DecodeString("ffeeddccbbaa99887766554433221100f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	pt, _ := hex.DecodeString("fedcba9876543210")
	want, _ := hex.DecodeString("4ee901e5c2d8ca3d")

	c := New(WithSubstitutionBox(SBoxTC26Z), WithByteOrder(binary.BigEndian))
	if err := c.SetKeyBytes(key); err != nil {
		t.Fatalf("SetKeyBytes failed: %v", err)
	}
	if c.Key()[0] != 0xffeeddcc || c.Key()[7] != 0xfcfdfeff {
		t.Fatalf("big endian key words = %08x", c.Key())
	}

	ct := make([]byte, BlockSize)
	c.Encrypt(ct, pt)
	if !bytes.Equal(ct, want) {
		t.Fatalf("Encrypt = %x, want %x", ct, want)
	}
	back := make([]byte, BlockSize)
	c.Decrypt(back, ct)
	if !bytes.Equal(back, pt) {
		t.Fatalf("Decrypt = %x, want %x", back, pt)
	}
}

func TestLittleEndianBlockBytes(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	want, _ := hex.DecodeString("66aa28cf3b24ddb9")
	dst := make([]byte, BlockSize)
	c.Encrypt(dst, make([]byte, BlockSize))
	if !bytes.Equal(dst, want) {
		t.Fatalf("Encrypt(zero) = %x, want %x", dst, want)
	}

	// in place
	c.Decrypt(dst, dst)
	if !bytes.Equal(dst, make([]byte, BlockSize)) {
		t.Fatalf("in place Decrypt = %x, want zero block", dst)
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(28147))
	for i := 0; i < 200; i++ {
		var key [KeyWords]uint32
		for j := range key {
			key[j] = rng.Uint32()
		}
		sbox := SBoxTest
		if i%2 == 1 {
			sbox = SBoxTC26Z
		}
		c := New(WithKey(key), WithSubstitutionBox(sbox))
		block := rng.Uint64()
		if got := c.DecryptBlock(c.EncryptBlock(block)); got != block {
			t.Fatalf("round trip %d: got %016X, want %016X", i, got, block)
		}
	}
}

func TestDeterminismAndKeyChange(t *testing.T) {
	c := New(WithKey(scheduleKey))
	first := c.EncryptBlock(0x0123456789ABCDEF)
	if again := c.EncryptBlock(0x0123456789ABCDEF); again != first {
		t.Fatalf("EncryptBlock is not deterministic: %016X != %016X", again, first)
	}

	other := scheduleKey
	other[3] ^= 1
	c.SetKey(other)
	changed := c.EncryptBlock(0x0123456789ABCDEF)
	if changed == first {
		t.Fatalf("key change did not change the ciphertext")
	}

	c.SetKey(scheduleKey)
	if got := c.EncryptBlock(0x0123456789ABCDEF); got != first {
		t.Fatalf("restoring the key did not restore output")
	}
}

func TestInstancesDoNotShareSBox(t *testing.T) {
	a := New(WithKey(scheduleKey))
	b := New(WithKey(scheduleKey), WithSubstitutionBox(SBoxTC26Z))
	if a.EncryptBlock(0) == b.EncryptBlock(0) {
		t.Fatalf("different S-boxes gave the same output")
	}
	if a.SubstitutionBox() != SBoxTest {
		t.Fatalf("configuring b changed a's S-box")
	}
}

func TestMACBlockDiffersFromEncrypt(t *testing.T) {
	c := New(WithKey(scheduleKey))
	if c.MACBlock(0x1122334455667788) == c.EncryptBlock(0x1122334455667788) {
		t.Fatalf("16-round MAC cycle equals the full encryption")
	}
}

func TestCipherBlockInterface(t *testing.T) {
	var b cipher.Block = New(WithKey(scheduleKey))
	if b.BlockSize() != BlockSize {
		t.Fatalf("BlockSize = %d, want %d", b.BlockSize(), BlockSize)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("Encrypt on a short block did not panic")
		}
	}()
	b.Encrypt(make([]byte, 8), make([]byte, 4))
}

func BenchmarkEncryptBlock(b *testing.B) {
	c := New(WithKey(scheduleKey))
	var x uint64
	for i := 0; i < b.N; i++ {
		x = c.EncryptBlock(x)
	}
}

func BenchmarkDecryptBlock(b *testing.B) {
	c := New(WithKey(scheduleKey))
	var x uint64
	for i := 0; i < b.N; i++ {
		x = c.DecryptBlock(x)
	}
}

func BenchmarkEncrypt(b *testing.B) {
	c := New(WithKey(scheduleKey))
	buf := make([]byte, BlockSize)
	b.SetBytes(BlockSize)
	for i := 0; i < b.N; i++ {
		c.Encrypt(buf, buf)
	}
}
