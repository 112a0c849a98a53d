package sponge_test

import (
	"bytes"
	"crypto/subtle"
	"testing"

	"github.com/kecclab/trails/internal/testdata"
	"github.com/kecclab/trails/sponge/treewrap"
	fuzz "github.com/trailofbits/go-fuzz-utils"
)

// FuzzTreeWrapRoundTrip checks that EncryptAndMAC/DecryptAndMAC round-trip for arbitrary
// plaintexts and keys, and that flipping any single ciphertext or tag byte is always detected.
func FuzzTreeWrapRoundTrip(f *testing.F) {
	drbg := testdata.New("treewrap fuzz")
	for range 10 {
		f.Add(drbg.Data(1024))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		keyBytes, err := tp.GetBytes()
		if err != nil {
			t.Skip(err)
		}
		var key [treewrap.KeySize]byte
		copy(key[:], keyBytes)

		plaintext, err := tp.GetBytes()
		if err != nil {
			t.Skip(err)
		}

		ciphertext, tag := treewrap.EncryptAndMAC(nil, &key, plaintext)
		got, gotTag := treewrap.DecryptAndMAC(nil, &key, ciphertext)

		if subtle.ConstantTimeCompare(tag[:], gotTag[:]) != 1 {
			t.Fatalf("tag mismatch for %d-byte plaintext", len(plaintext))
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round-trip mismatch: got %x, want %x", got, plaintext)
		}

		if len(ciphertext) > 0 {
			tampered := append([]byte(nil), ciphertext...)
			tampered[0] ^= 0x01
			_, badTag := treewrap.DecryptAndMAC(nil, &key, tampered)
			if subtle.ConstantTimeCompare(tag[:], badTag[:]) == 1 {
				t.Fatal("tag matched after a single ciphertext byte was flipped")
			}
		}
	})
}
