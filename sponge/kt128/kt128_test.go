package kt128

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

// ptn returns a byte slice of length n using the KT128 test pattern:
// repeating 0x00..0xFA (251 bytes).
func ptn(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func unhex(s string) []byte {
	s = strings.ReplaceAll(s, " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// RFC 9861 Section 5 KT128 test vectors.
var rfcVectors = []struct {
	name   string
	msg    []byte
	custom []byte
	outLen int
	want   []byte // full output (or last 32 bytes for 10032 case)
	last32 bool   // if true, want is the last 32 bytes of outLen output
}{
	{
		name:   "empty/empty/32",
		msg:    nil,
		custom: nil,
		outLen: 32,
		want:   unhex("1AC2D450FC3B4205D19DA7BFCA1B37513C0803577AC7167F06FE2CE1F0EF39E5"),
	},
	{
		name:   "empty/empty/64",
		msg:    nil,
		custom: nil,
		outLen: 64,
		want: unhex("1AC2D450FC3B4205D19DA7BFCA1B37513C0803577AC7167F06FE2CE1F0EF39E5" +
			"4269C056B8C82E48276038B6D292966CC07A3D4645272E31FF38508139EB0A71"),
	},
	{
		name:   "empty/empty/10032",
		msg:    nil,
		custom: nil,
		outLen: 10032,
		want:   unhex("E8DC563642F7228C84684C898405D3A834799158C079B12880277A1D28E2FF6D"),
		last32: true,
	},
	{
		name:   "ptn(1)/empty/32",
		msg:    ptn(1),
		custom: nil,
		outLen: 32,
		want:   unhex("2BDA92450E8B147F8A7CB629E784A058EFCA7CF7D8218E02D345DFAA65244A1F"),
	},
	{
		name:   "ptn(17)/empty/32",
		msg:    ptn(17),
		custom: nil,
		outLen: 32,
		want:   unhex("6BF75FA2239198DB4772E36478F8E19B0F371205F6A9A93A273F51DF37122888"),
	},
}

func TestRFCVectors(t *testing.T) {
	for _, tc := range rfcVectors {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCustom(tc.custom)
			if tc.msg != nil {
				_, _ = h.Write(tc.msg)
			}

			out := make([]byte, tc.outLen)
			_, _ = h.Read(out)

			var got []byte
			if tc.last32 {
				got = out[len(out)-32:]
			} else {
				got = out
			}

			if !bytes.Equal(got, tc.want) {
				t.Errorf("got  %x", got)
				t.Errorf("want %x", tc.want)
			}
		})
	}
}

func TestIncremental(t *testing.T) {
	// Verify that incremental writes produce the same result as one-shot, across both the
	// single-node and tree-mode boundaries (BlockSize = 8192).
	msg := ptn(83521)

	h1 := New()
	_, _ = h1.Write(msg)
	want := make([]byte, 64)
	_, _ = h1.Read(want)

	for _, chunkSize := range []int{1, 7, 168, 1000, 8192, 8193, len(msg)} {
		t.Run(fmt.Sprintf("chunk=%d", chunkSize), func(t *testing.T) {
			h := New()
			for i := 0; i < len(msg); i += chunkSize {
				end := min(i+chunkSize, len(msg))
				_, _ = h.Write(msg[i:end])
			}
			got := make([]byte, 64)
			_, _ = h.Read(got)
			if !bytes.Equal(got, want) {
				t.Errorf("chunk=%d: mismatch", chunkSize)
			}
		})
	}
}

func TestIncrementalRead(t *testing.T) {
	h := New()
	_, _ = h.Write(ptn(4913))

	var buf bytes.Buffer
	for _, s := range []int{1, 7, 16, 32, 64, 100, 168, 200} {
		tmp := make([]byte, s)
		_, _ = h.Read(tmp)
		buf.Write(tmp)
	}
	got := buf.Bytes()

	h2 := New()
	_, _ = h2.Write(ptn(4913))
	want := make([]byte, len(got))
	_, _ = h2.Read(want)

	if !bytes.Equal(got, want) {
		t.Error("incremental read mismatch")
	}
}

func TestIncrementalReadTreeMode(t *testing.T) {
	// Repeated Read calls on a tree-mode (>BlockSize) message must keep squeezing the same
	// finalized node rather than re-finalizing on every call.
	msg := ptn(3 * BlockSize)

	h := New()
	_, _ = h.Write(msg)
	var buf bytes.Buffer
	for _, s := range []int{5, 37, 168, 500} {
		tmp := make([]byte, s)
		_, _ = h.Read(tmp)
		buf.Write(tmp)
	}
	got := buf.Bytes()

	h2 := New()
	_, _ = h2.Write(msg)
	want := make([]byte, len(got))
	_, _ = h2.Read(want)

	if !bytes.Equal(got, want) {
		t.Error("tree-mode incremental read mismatch")
	}
}

func TestSumNonDestructive(t *testing.T) {
	h := New()
	_, _ = h.Write(ptn(4913))

	sum := h.Sum(nil)

	h2 := New()
	_, _ = h2.Write(ptn(4913))
	out := make([]byte, 32)
	_, _ = h2.Read(out)

	if !bytes.Equal(sum, out) {
		t.Error("Sum result differs from Read")
	}
}

func TestClone(t *testing.T) {
	for _, size := range []int{0, 1, BlockSize - 1, BlockSize, BlockSize + 1, 83521} {
		t.Run(fmt.Sprintf("%d", size), func(t *testing.T) {
			msg := ptn(size)

			h := NewCustom([]byte("test"))
			_, _ = h.Write(msg)

			clone := h.Clone()

			want := make([]byte, 64)
			_, _ = h.Read(want)

			got := make([]byte, 64)
			_, _ = clone.Read(got)

			if !bytes.Equal(got, want) {
				t.Errorf("size=%d: clone output mismatch", size)
			}
		})
	}

	t.Run("independent after clone", func(t *testing.T) {
		h := NewCustom([]byte("test"))
		_, _ = h.Write(ptn(BlockSize + 1))

		clone := h.Clone()
		_, _ = h.Write([]byte("extra"))

		out1 := make([]byte, 64)
		_, _ = h.Read(out1)

		out2 := make([]byte, 64)
		_, _ = clone.Read(out2)

		if bytes.Equal(out1, out2) {
			t.Error("clone and original produced identical output after diverging")
		}
	})
}

func TestReset(t *testing.T) {
	h := NewCustom([]byte("ctx"))
	_, _ = h.Write(ptn(20000))
	var discard [32]byte
	_, _ = h.Read(discard[:])

	h.Reset()
	_, _ = h.Write(ptn(1))
	got := make([]byte, 32)
	_, _ = h.Read(got)

	h2 := NewCustom([]byte("ctx"))
	_, _ = h2.Write(ptn(1))
	want := make([]byte, 32)
	_, _ = h2.Read(want)

	if !bytes.Equal(got, want) {
		t.Error("Reset did not return the hasher to a clean state")
	}
}
