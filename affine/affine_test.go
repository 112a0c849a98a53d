package affine

import (
	"testing"

	"github.com/kecclab/trails/core"
)

// TestRowSpaceReproducesPatterns checks testable property #6 for rows: the affine space built by
// NewRowSpace, fully enumerated via its offset and generators, reproduces exactly the set of
// patterns it was built from -- neither more nor fewer elements.
func TestRowSpaceReproducesPatterns(t *testing.T) {
	patterns := []core.RowValue{0x03, 0x00, 0x05, 0x06} // offset will be the first element, 0x03
	space := NewRowSpace(patterns)

	want := make(map[core.RowValue]bool)
	for _, p := range patterns {
		want[p] = true
	}

	got := make(map[core.RowValue]bool)
	n := 1 << uint(space.Weight())
	for i := 0; i < n; i++ {
		v := space.Offset
		for b, g := range space.Generators {
			if i&(1<<uint(b)) != 0 {
				v ^= g
			}
		}
		got[v] = true
	}

	if len(got) != len(want) {
		t.Fatalf("enumerated %d distinct rows, want %d", len(got), len(want))
	}
	for p := range want {
		if !got[p] {
			t.Errorf("pattern %#x missing from enumerated row space", p)
		}
	}
}

func TestRowSpaceEmpty(t *testing.T) {
	space := NewRowSpace(nil)
	if space.Weight() != 0 || space.Offset != 0 {
		t.Fatalf("empty pattern list should give a zero-weight, zero-offset space, got %+v", space)
	}
}

// TestSlicesIteratorCoversCosetExactly checks testable property #6 for slices: a SlicesIterator
// built from k generators visits exactly 2^k distinct values, matching the set produced by
// directly enumerating every XOR combination of the generators.
func TestSlicesIteratorCoversCosetExactly(t *testing.T) {
	g1 := core.SliceFromRow(1, 0) // bit (x=0,y=0)
	g2 := core.SliceFromRow(2, 0) // bit (x=1,y=0)
	g3 := core.SliceFromRow(1, 1) // bit (x=0,y=1)
	generators := []core.SliceValue{g1, g2, g3}
	offset := core.SliceValue(0)

	want := make(map[core.SliceValue]bool)
	for i := 0; i < 8; i++ {
		v := offset
		if i&1 != 0 {
			v ^= g1
		}
		if i&2 != 0 {
			v ^= g2
		}
		if i&4 != 0 {
			v ^= g3
		}
		want[v] = true
	}

	it := NewSlicesIterator(generators, offset)
	if it.Count() != 8 {
		t.Fatalf("Count() = %d, want 8", it.Count())
	}
	got := make(map[core.SliceValue]bool)
	n := 0
	for !it.IsEnd() {
		got[it.Value()] = true
		n++
		it.Next()
	}
	if uint64(n) != it.Count() {
		t.Fatalf("iterated %d elements, Count() reports %d", n, it.Count())
	}
	if len(got) != len(want) {
		t.Fatalf("iterator produced %d distinct values, want %d (duplicates or omissions)", len(got), len(want))
	}
	for v := range want {
		if !got[v] {
			t.Errorf("value %#x in the expected coset was never produced by the iterator", v)
		}
	}
}

// sliceParity returns the single-slice column parity, reusing core.Parity on a length-1 state.
func sliceParity(s core.SliceValue) core.RowValue {
	return core.Parity([]core.SliceValue{s})[0]
}

// TestSliceSpaceGetOffsetWithGivenParityRoundTrips checks scenario S5: for every parity reachable
// from a SliceSpace's parity-offset generators, GetOffsetWithGivenParity must return a slice whose
// actual recomputed parity equals the one requested.
func TestSliceSpaceGetOffsetWithGivenParityRoundTrips(t *testing.T) {
	g1 := core.SliceFromRow(1, 0) // parity bit 0 (x=0)
	g2 := core.SliceFromRow(2, 0) // parity bit 1 (x=1)
	p1, p2 := sliceParity(g1), sliceParity(g2)
	if p1 != 1 || p2 != 2 {
		t.Fatalf("test fixture assumption broken: parity(g1)=%#x parity(g2)=%#x", p1, p2)
	}

	space := NewSliceSpace([]core.SliceValue{g1, g2}, []core.RowValue{p1, p2}, 0, 0)

	for parity := core.RowValue(0); parity < 4; parity++ {
		got, ok := space.GetOffsetWithGivenParity(parity)
		if !ok {
			t.Errorf("parity %#x should be reachable from generators spanning parity bits 0 and 1", parity)
			continue
		}
		if actual := sliceParity(got); actual != parity {
			t.Errorf("GetOffsetWithGivenParity(%#x) = %#x with actual parity %#x, want %#x", parity, got, actual, parity)
		}
	}

	if _, ok := space.GetOffsetWithGivenParity(4); ok {
		t.Errorf("parity bit 2 is not spanned by either generator, GetOffsetWithGivenParity(4) should fail")
	}
}

func TestPackUnpackParityRoundTrip(t *testing.T) {
	if !CanPack(12) {
		t.Fatalf("CanPack(12) should hold (12*5 <= 64 bits)")
	}
	parities := make([]core.RowValue, 12)
	for z := range parities {
		parities[z] = core.RowValue((z * 7) & 0x1F)
	}
	packed := Pack(parities)
	unpacked := Unpack(packed, 12)
	for z, p := range parities {
		if unpacked[z] != p {
			t.Errorf("z=%d: Pack/Unpack round trip gave %#x, want %#x", z, unpacked[z], p)
		}
	}
}
