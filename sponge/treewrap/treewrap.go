// Package treewrap implements TreeWrap, a tree-structured authenticated encryption construction
// built on Keccak-p[1600,12].
//
// Each leaf operates as an independent SpongeWrap instance; leaf chain values are accumulated
// into a single authentication tag via TurboSHAKE128, using the same KangarooTwelve-style
// framing as package kt128. TreeWrap is a pure function with no internal state: it is a building
// block for duplex-based protocols, where key uniqueness and associated data are managed by the
// caller. The key MUST be unique per invocation.
package treewrap

import (
	"encoding/binary"

	"github.com/kecclab/trails/internal/mem"
	"github.com/kecclab/trails/sponge/internal/fixedkeccak"
	"github.com/kecclab/trails/sponge/turboshake"
)

const (
	// KeySize is the size of the key in bytes.
	KeySize = 32

	// TagSize is the size of the authentication tag in bytes.
	TagSize = 32

	// ChunkSize is the size of each leaf chunk in bytes.
	ChunkSize = 8 * 1024

	rate      = 168      // TurboSHAKE128 rate (200 − 32).
	cvSize    = 32       // Chain value size (= capacity).
	blockRate = rate - 1 // 167: usable data bytes per sponge block.
	leafDS    = 0x60     // Domain separation byte for leaf sponges.
	tagDS     = 0x61     // Domain separation byte for tag computation.
)

// EncryptAndMAC encrypts plaintext, appends the ciphertext to dst, and returns the resulting
// slice along with a TagSize-byte authentication tag. The key MUST be unique per invocation.
//
// To reuse plaintext's storage for the encrypted output, use plaintext[:0] as dst. Otherwise the
// remaining capacity of dst must not overlap plaintext.
func EncryptAndMAC(dst []byte, key *[KeySize]byte, plaintext []byte) ([]byte, [TagSize]byte) {
	n := max(1, (len(plaintext)+ChunkSize-1)/ChunkSize)

	ret, ciphertext := mem.SliceForAppend(dst, len(plaintext))
	h := turboshake.New(tagDS)
	var cv [cvSize]byte
	cvCount := 0

	for idx := 0; idx < n; idx++ {
		off := idx * ChunkSize
		end := min(off+ChunkSize, len(plaintext))
		encryptLeaf(key, uint64(idx), plaintext[off:end], ciphertext[off:end], cv[:])
		feedCV(&h, cv[:], &cvCount)
	}

	return ret, finalizeTag(&h, n)
}

// DecryptAndMAC decrypts ciphertext, appends the plaintext to dst, and returns the resulting
// slice along with the expected TagSize-byte authentication tag. The caller MUST verify the tag
// using constant-time comparison before using the plaintext.
//
// To reuse ciphertext's storage for the decrypted output, use ciphertext[:0] as dst. Otherwise
// the remaining capacity of dst must not overlap ciphertext.
func DecryptAndMAC(dst []byte, key *[KeySize]byte, ciphertext []byte) ([]byte, [TagSize]byte) {
	n := max(1, (len(ciphertext)+ChunkSize-1)/ChunkSize)

	ret, plaintext := mem.SliceForAppend(dst, len(ciphertext))
	h := turboshake.New(tagDS)
	var cv [cvSize]byte
	cvCount := 0

	for idx := 0; idx < n; idx++ {
		off := idx * ChunkSize
		end := min(off+ChunkSize, len(ciphertext))
		decryptLeaf(key, uint64(idx), ciphertext[off:end], plaintext[off:end], cv[:])
		feedCV(&h, cv[:], &cvCount)
	}

	return ret, finalizeTag(&h, n)
}

// kt12Marker is the 8-byte KangarooTwelve marker written after cv[0].
var kt12Marker = [8]byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// feedCV writes one chain value into the hasher with KT12 final-node framing. After the first
// CV, it inserts the KT12 marker. cvCount tracks how many CVs have been written so far.
func feedCV(h *turboshake.Hasher, cv []byte, cvCount *int) {
	_, _ = h.Write(cv)
	*cvCount++
	if *cvCount == 1 {
		_, _ = h.Write(kt12Marker[:])
	}
}

// finalizeTag writes the KT12 terminator and squeezes the tag.
func finalizeTag(h *turboshake.Hasher, n int) (tag [TagSize]byte) {
	_, _ = h.Write(lengthEncode(uint64(n - 1)))
	_, _ = h.Write([]byte{0xFF, 0xFF})
	_, _ = h.Read(tag[:])
	return tag
}

// lengthEncode encodes x as in KangarooTwelve: big-endian with no leading zeros,
// followed by a byte giving the length of the encoding.
func lengthEncode(x uint64) []byte {
	if x == 0 {
		return []byte{0x00}
	}

	n := 0
	for v := x; v > 0; v >>= 8 {
		n++
	}

	buf := make([]byte, n+1)
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(x)
		x >>= 8
	}
	buf[n] = byte(n)

	return buf
}

// leafPad prepares a Keccak state for a leaf sponge init (absorb key || LE64(index) and apply
// padding). The caller must invoke the permutation.
func leafPad(s *[200]byte, key *[KeySize]byte, index uint64) {
	copy(s[:KeySize], key[:])
	binary.LittleEndian.PutUint64(s[KeySize:KeySize+8], index)
	s[KeySize+8] = leafDS
	s[rate-1] = 0x80
}

// finalPos returns the sponge position after encrypting/decrypting chunkLen bytes.
func finalPos(chunkLen int) int {
	if chunkLen == 0 {
		return 0
	}
	p := chunkLen % blockRate
	if p == 0 {
		return blockRate
	}
	return p
}

func encryptLeaf(key *[KeySize]byte, index uint64, pt, ct, cv []byte) {
	var s [200]byte
	leafPad(&s, key, index)
	fixedkeccak.P1600(&s)

	chunkLen := len(pt)
	off := 0
	for off < chunkLen {
		n := min(blockRate, chunkLen-off)
		mem.XORAndCopy(ct[off:off+n], pt[off:off+n], s[:n])
		off += n
		if off < chunkLen {
			s[blockRate] ^= leafDS
			s[rate-1] ^= 0x80
			fixedkeccak.P1600(&s)
		}
	}

	pos := finalPos(chunkLen)
	s[pos] ^= leafDS
	s[rate-1] ^= 0x80
	fixedkeccak.P1600(&s)
	copy(cv[:cvSize], s[:cvSize])
}

func decryptLeaf(key *[KeySize]byte, index uint64, ct, pt, cv []byte) {
	var s [200]byte
	leafPad(&s, key, index)
	fixedkeccak.P1600(&s)

	chunkLen := len(ct)
	off := 0
	for off < chunkLen {
		n := min(blockRate, chunkLen-off)
		mem.XORAndReplace(pt[off:off+n], ct[off:off+n], s[:n])
		off += n
		if off < chunkLen {
			s[blockRate] ^= leafDS
			s[rate-1] ^= 0x80
			fixedkeccak.P1600(&s)
		}
	}

	pos := finalPos(chunkLen)
	s[pos] ^= leafDS
	s[rate-1] ^= 0x80
	fixedkeccak.P1600(&s)
	copy(cv[:cvSize], s[:cvSize])
}
