// Package affine implements the affine-space representations of the set of states compatible with
// a given state through χ (or its inverse): [RowSpace] (row-local), [SliceSpace] (one slice) and
// [StateSpace] (a full state), each upper-triangularised by parity into a parity-offset part
// (changes the row/slice/state parity) and a parity-kernel part (preserves it), per spec §4.4.
package affine

import (
	"github.com/kecclab/trails/core"
)

// PackedParity packs the 5-bit row-parity of up to 12 slices (5 bits each) into one 64-bit word;
// usable whenever laneSize*5 <= 64, i.e. laneSize in {1,2,4,8}.
type PackedParity uint64

// CanPack reports whether laneSize*5 fits in a PackedParity.
func CanPack(laneSize int) bool {
	return laneSize*5 <= 64
}

// GetParity extracts the 5-bit row parity at slice z from a packed parity word.
func GetParity(p PackedParity, z int) core.RowValue {
	return core.RowValue(p>>uint(5*z)) & 0x1F
}

// SetParity returns p with the 5-bit row parity at slice z replaced by v.
func SetParity(p PackedParity, z int, v core.RowValue) PackedParity {
	p &^= PackedParity(0x1F) << uint(5*z)
	p |= PackedParity(v&0x1F) << uint(5*z)
	return p
}

// Pack packs an unpacked per-slice parity vector into a PackedParity.
func Pack(parity []core.RowValue) PackedParity {
	var p PackedParity
	for z, v := range parity {
		p = SetParity(p, z, v)
	}
	return p
}

// Unpack expands a PackedParity into a laneSize-long unpacked parity vector.
func Unpack(p PackedParity, laneSize int) []core.RowValue {
	out := make([]core.RowValue, laneSize)
	for z := range out {
		out[z] = GetParity(p, z)
	}
	return out
}

// RowSpace is offset + generators for a 5-bit affine space of row values. Its Weight is the number
// of generators.
type RowSpace struct {
	Offset     core.RowValue
	Generators []core.RowValue
}

// Weight returns the number of generators (= log2 of the cardinality of the space).
func (a *RowSpace) Weight() int { return len(a.Generators) }

// NewRowSpace builds the affine space spanned by patterns (sorted ascending by weight, as produced
// by a [dclc.ListOfRowPatterns]): offset is the lightest pattern, and the generators are a
// row-echelon GF(2) basis of {p XOR offset : p in patterns}. See DESIGN.md for why this uniform
// construction is used in place of the original's DC/LC-specific special-cased table.
func NewRowSpace(patterns []core.RowValue) *RowSpace {
	if len(patterns) == 0 {
		return &RowSpace{}
	}
	offset := patterns[0]
	diffs := make([]core.RowValue, 0, len(patterns)-1)
	for _, p := range patterns[1:] {
		diffs = append(diffs, p^offset)
	}
	return &RowSpace{Offset: offset, Generators: gf2Basis(diffs)}
}

// gf2Basis reduces vecs (5-bit values) to a linearly independent basis spanning the same GF(2)
// space, via Gaussian elimination keyed by each vector's highest set bit.
func gf2Basis(vecs []core.RowValue) []core.RowValue {
	var pivots [5]core.RowValue
	var present [5]bool
	for _, v := range vecs {
		cur := v
		for {
			hb := highBit(cur)
			if hb < 0 {
				break
			}
			if !present[hb] {
				pivots[hb] = cur
				present[hb] = true
				break
			}
			cur ^= pivots[hb]
		}
	}
	var basis []core.RowValue
	for b := 0; b < 5; b++ {
		if present[b] {
			basis = append(basis, pivots[b])
		}
	}
	return basis
}

func highBit(v core.RowValue) int {
	for b := 4; b >= 0; b-- {
		if v&(1<<uint(b)) != 0 {
			return b
		}
	}
	return -1
}

// SliceSpace is the affine-space representation over one slice: the original generators (as
// supplied), plus their upper-triangularised split into parity-offset generators (ordered so
// their parities form an upper-triangular matrix) and parity-kernel generators (zero parity).
type SliceSpace struct {
	Offset       core.SliceValue
	OffsetParity core.RowValue

	OriginalGenerators []core.SliceValue

	OffsetGenerators []core.SliceValue
	OffsetParities   []core.RowValue
	KernelGenerators []core.SliceValue
}

// NewSliceSpace builds a SliceSpace from generators (with matching per-generator parities) and an
// offset (with its parity), following the upper-triangularisation in spec §4.4.
func NewSliceSpace(generators []core.SliceValue, parities []core.RowValue, offset core.SliceValue, offsetParity core.RowValue) *SliceSpace {
	s := &SliceSpace{
		Offset:             offset,
		OffsetParity:       offsetParity,
		OriginalGenerators: append([]core.SliceValue(nil), generators...),
	}

	gens := append([]core.SliceValue(nil), generators...)
	pars := append([]core.RowValue(nil), parities...)

	for x := 0; x < 5; x++ {
		selectX := core.RowValue(1) << uint(x)
		found := -1
		for i := range gens {
			if pars[i]&selectX != 0 {
				found = i
				break
			}
		}
		if found < 0 {
			continue
		}
		foundSlice, foundParity := gens[found], pars[found]
		s.OffsetGenerators = append(s.OffsetGenerators, foundSlice)
		s.OffsetParities = append(s.OffsetParities, foundParity)
		for i := range gens {
			if pars[i]&selectX != 0 {
				gens[i] ^= foundSlice
				pars[i] ^= foundParity
			}
		}
	}
	for i, g := range gens {
		if g != 0 || pars[i] != 0 {
			s.KernelGenerators = append(s.KernelGenerators, g)
		}
	}
	return s
}

// GetOffsetWithGivenParity finds an element of the space whose parity is exactly parity, returning
// (offset, true) on success or (0, false) if parity is unreachable from the parity-offset
// generators.
func (s *SliceSpace) GetOffsetWithGivenParity(parity core.RowValue) (core.SliceValue, bool) {
	output := s.Offset
	correction := parity ^ s.OffsetParity

	i := 0
	for x := 0; x < 5; x++ {
		mask := core.RowValue((1 << uint(x+1)) - 1)
		if correction&(1<<uint(x)) != 0 {
			for i < len(s.OffsetParities) && (s.OffsetParities[i]&mask) != (1<<uint(x)) {
				i++
			}
			if i < len(s.OffsetParities) {
				output ^= s.OffsetGenerators[i]
				correction ^= s.OffsetParities[i]
			} else {
				return 0, false
			}
		}
	}
	return output, correction == 0
}

// SlicesIterator enumerates every element of a coset of kernel generators (an offset plus the
// parity-kernel span), in Gray-code order: at step i, the generator indexed by the lowest set bit
// of i is XORed into the running state, producing each of the 2^k elements exactly once (spec
// §4.4).
type SlicesIterator struct {
	generators []core.SliceValue
	offset     core.SliceValue
	current    core.SliceValue
	index      uint64
	size       uint64
}

// NewSlicesIterator returns an iterator over offset + span(generators).
func NewSlicesIterator(generators []core.SliceValue, offset core.SliceValue) *SlicesIterator {
	return &SlicesIterator{
		generators: generators,
		offset:     offset,
		current:    offset,
		size:       uint64(1) << uint(len(generators)),
	}
}

// Index returns the 0-based position of the current element.
func (it *SlicesIterator) Index() uint64 { return it.index }

// Count returns the total number of elements (2^k).
func (it *SlicesIterator) Count() uint64 { return it.size }

// IsEnd reports whether the iterator has visited every element.
func (it *SlicesIterator) IsEnd() bool { return it.index >= it.size }

// Value returns the current element.
func (it *SlicesIterator) Value() core.SliceValue { return it.current }

// Next advances to the next element.
func (it *SlicesIterator) Next() {
	if it.index+1 >= it.size {
		it.index++
		return
	}
	lowBit := lowestSetBit(it.index + 1)
	it.current ^= it.generators[lowBit]
	it.index++
}

func lowestSetBit(v uint64) int {
	for i := 0; i < 64; i++ {
		if v&(uint64(1)<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// StateSpace generalises SliceSpace to a full state (laneSize slices), supporting both the packed
// (PackedParity, when CanPack(laneSize)) and unpacked (per-slice RowValue vector) parity
// representations, per spec §4.4.
type StateSpace struct {
	LaneSize int
	Packed   bool

	Offset       []core.SliceValue
	OffsetParity PackedParity
	OffsetParityUnpacked []core.RowValue

	OriginalGenerators [][]core.SliceValue

	OffsetGenerators           [][]core.SliceValue
	OffsetParitiesPacked       []PackedParity
	OffsetParitiesUnpacked     [][]core.RowValue
	KernelGenerators           [][]core.SliceValue
}

// NewStateSpacePacked builds a packed-representation StateSpace. Requires CanPack(laneSize).
func NewStateSpacePacked(laneSize int, generators [][]core.SliceValue, parities []PackedParity, offset []core.SliceValue, offsetParity PackedParity) *StateSpace {
	s := &StateSpace{
		LaneSize:           laneSize,
		Packed:             true,
		Offset:             offset,
		OffsetParity:       offsetParity,
		OriginalGenerators: append([][]core.SliceValue(nil), generators...),
	}

	gens := make([][]core.SliceValue, len(generators))
	for i, g := range generators {
		gens[i] = append([]core.SliceValue(nil), g...)
	}
	pars := append([]PackedParity(nil), parities...)

	for xz := 0; xz < 5*laneSize; xz++ {
		selectXZ := PackedParity(1) << uint(xz)
		found := -1
		for i := range gens {
			if pars[i]&selectXZ != 0 {
				found = i
				break
			}
		}
		if found < 0 {
			continue
		}
		foundState := append([]core.SliceValue(nil), gens[found]...)
		foundParity := pars[found]
		s.OffsetGenerators = append(s.OffsetGenerators, foundState)
		s.OffsetParitiesPacked = append(s.OffsetParitiesPacked, foundParity)
		for i := range gens {
			if pars[i]&selectXZ != 0 {
				for z := range gens[i] {
					gens[i][z] ^= foundState[z]
				}
				pars[i] ^= foundParity
			}
		}
	}
	for i, g := range gens {
		if !allZeroSlices(g) || pars[i] != 0 {
			s.KernelGenerators = append(s.KernelGenerators, g)
		}
	}
	return s
}

// NewStateSpaceUnpacked builds an unpacked-representation StateSpace (used when laneSize*5 > 64).
func NewStateSpaceUnpacked(laneSize int, generators [][]core.SliceValue, parities [][]core.RowValue, offset []core.SliceValue, offsetParity []core.RowValue) *StateSpace {
	s := &StateSpace{
		LaneSize:             laneSize,
		Packed:               false,
		Offset:               offset,
		OffsetParityUnpacked: offsetParity,
		OriginalGenerators:   append([][]core.SliceValue(nil), generators...),
	}

	gens := make([][]core.SliceValue, len(generators))
	for i, g := range generators {
		gens[i] = append([]core.SliceValue(nil), g...)
	}
	pars := make([][]core.RowValue, len(parities))
	for i, p := range parities {
		pars[i] = append([]core.RowValue(nil), p...)
	}

	for z := 0; z < laneSize; z++ {
		for x := 0; x < 5; x++ {
			selectX := core.RowValue(1) << uint(x)
			found := -1
			for i := range gens {
				if pars[i][z]&selectX != 0 {
					found = i
					break
				}
			}
			if found < 0 {
				continue
			}
			foundState := append([]core.SliceValue(nil), gens[found]...)
			foundParity := append([]core.RowValue(nil), pars[found]...)
			s.OffsetGenerators = append(s.OffsetGenerators, foundState)
			s.OffsetParitiesUnpacked = append(s.OffsetParitiesUnpacked, foundParity)
			for i := range gens {
				if pars[i][z]&selectX != 0 {
					for jz := range gens[i] {
						gens[i][jz] ^= foundState[jz]
					}
					for jz := range pars[i] {
						pars[i][jz] ^= foundParity[jz]
					}
				}
			}
		}
	}
	for _, g := range gens {
		if !allZeroSlices(g) {
			s.KernelGenerators = append(s.KernelGenerators, g)
		}
	}
	return s
}

func allZeroSlices(s []core.SliceValue) bool {
	for _, v := range s {
		if v != 0 {
			return false
		}
	}
	return true
}

// GetOffsetWithGivenParityPacked returns an element whose packed parity equals parity.
func (s *StateSpace) GetOffsetWithGivenParityPacked(parity PackedParity) ([]core.SliceValue, bool) {
	if !s.Packed {
		return s.getOffsetWithGivenParityUnpacked(Unpack(parity, s.LaneSize))
	}
	output := append([]core.SliceValue(nil), s.Offset...)
	correction := parity ^ s.OffsetParity

	i := 0
	for xz := 0; xz < 5*s.LaneSize; xz++ {
		mask := (PackedParity(1) << uint(xz+1)) - 1
		selectXZ := PackedParity(1) << uint(xz)
		if correction&selectXZ != 0 {
			for i < len(s.OffsetParitiesPacked) && (s.OffsetParitiesPacked[i]&mask) != selectXZ {
				i++
			}
			if i < len(s.OffsetParitiesPacked) {
				for z := range output {
					output[z] ^= s.OffsetGenerators[i][z]
				}
				correction ^= s.OffsetParitiesPacked[i]
			} else {
				return nil, false
			}
		}
	}
	return output, correction == 0
}

// GetOffsetWithGivenParityUnpacked returns an element whose per-slice parity vector equals parity;
// on a space built packed, it packs parity and answers through the packed search. It is
// exposed directly (rather than only via the packed entry point) because laneSize*5 > 64 widths
// never have a packed representation at all.
func (s *StateSpace) GetOffsetWithGivenParityUnpacked(parity []core.RowValue) ([]core.SliceValue, bool) {
	if s.Packed {
		return s.getOffsetWithGivenParityPackedFromUnpacked(parity)
	}
	return s.getOffsetWithGivenParityUnpacked(parity)
}

func (s *StateSpace) getOffsetWithGivenParityPackedFromUnpacked(parity []core.RowValue) ([]core.SliceValue, bool) {
	return s.GetOffsetWithGivenParityPacked(Pack(parity))
}

func oneAndZeroesBefore(parity []core.RowValue, maskX, selectX core.RowValue, z int) bool {
	for iz := 0; iz < z; iz++ {
		if parity[iz] != 0 {
			return false
		}
	}
	return parity[z]&maskX == selectX
}

func (s *StateSpace) getOffsetWithGivenParityUnpacked(parity []core.RowValue) ([]core.SliceValue, bool) {
	output := append([]core.SliceValue(nil), s.Offset...)
	correction := append([]core.RowValue(nil), parity...)
	for z := range correction {
		correction[z] ^= s.OffsetParityUnpacked[z]
	}

	i := 0
	for z := 0; z < s.LaneSize; z++ {
		for x := 0; x < 5; x++ {
			maskX := core.RowValue((1 << uint(x+1)) - 1)
			selectX := core.RowValue(1) << uint(x)
			if correction[z]&selectX != 0 {
				for i < len(s.OffsetParitiesUnpacked) && !oneAndZeroesBefore(s.OffsetParitiesUnpacked[i], maskX, selectX, z) {
					i++
				}
				if i < len(s.OffsetParitiesUnpacked) {
					for jz := range output {
						output[jz] ^= s.OffsetGenerators[i][jz]
					}
					for jz := range correction {
						correction[jz] ^= s.OffsetParitiesUnpacked[i][jz]
					}
				} else {
					return nil, false
				}
			}
		}
	}
	for _, c := range correction {
		if c != 0 {
			return nil, false
		}
	}
	return output, true
}

// StatesIterator is the state-level analogue of [SlicesIterator]: each step XORs in the
// generator (a full laneSize-slice vector) indexed by the lowest set bit of the step counter.
type StatesIterator struct {
	generators [][]core.SliceValue
	current    []core.SliceValue
	index      uint64
	size       uint64
}

// NewStatesIterator returns an iterator over offset + span(generators).
func NewStatesIterator(generators [][]core.SliceValue, offset []core.SliceValue) *StatesIterator {
	cur := append([]core.SliceValue(nil), offset...)
	return &StatesIterator{
		generators: generators,
		current:    cur,
		size:       uint64(1) << uint(len(generators)),
	}
}

// IsEnd reports whether every element has been visited.
func (it *StatesIterator) IsEnd() bool { return it.index >= it.size }

// Index returns the 0-based position of the current element.
func (it *StatesIterator) Index() uint64 { return it.index }

// Count returns 2^k, the number of elements.
func (it *StatesIterator) Count() uint64 { return it.size }

// Value returns the current element (owned by the iterator; copy before mutating across steps).
func (it *StatesIterator) Value() []core.SliceValue { return it.current }

// Next advances to the next element.
func (it *StatesIterator) Next() {
	if it.index+1 >= it.size {
		it.index++
		return
	}
	lowBit := lowestSetBit(it.index + 1)
	gen := it.generators[lowBit]
	for z := range it.current {
		it.current[z] ^= gen[z]
	}
	it.index++
}
