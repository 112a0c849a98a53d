package paritysearch

import (
	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/propagation"
	"github.com/kecclab/trails/trail"
)

// evenColumnValues and oddColumnValues are the 16 before-theta column values of even (resp. odd)
// Hamming weight, in the exact order Keccak-fTrailCoreParity.cpp's evenValues/oddValues tables
// give them. An affected column's value is always drawn from the table matching its own parity
// bit, since the column's five bits split between "active before theta" (bit set) and "active
// after theta" (bit clear) and their count's parity is fixed by the column's own C bit.
var evenColumnValues = [16]core.RowValue{
	0x00, 0x03, 0x05, 0x06, 0x09, 0x0A, 0x0C, 0x0F,
	0x11, 0x12, 0x14, 0x17, 0x18, 0x1B, 0x1D, 0x1E,
}

var oddColumnValues = [16]core.RowValue{
	0x01, 0x02, 0x04, 0x07, 0x08, 0x0B, 0x0D, 0x0E,
	0x10, 0x13, 0x15, 0x16, 0x19, 0x1A, 0x1C, 0x1F,
}

// setBit flips on the bit at (x, y) of slice z of state, leaving every other bit untouched.
func setBit(state []core.SliceValue, x, y, z int) {
	state[z] |= core.SliceFromRow(core.RowValue(1)<<uint(x), y)
}

// applyColumnValue instantiates an affected column's chosen before-theta value: each of its five
// bits lands in stateAtA (if set in value, i.e. active before theta) or stateAtB (if clear, i.e.
// the complementary activity appearing only after theta), each carried to its actual coordinate by
// the rho-pi transform on the appropriate side of theta.
func applyColumnValue(ctx *propagation.Context, stateAtA, stateAtB []core.SliceValue, x, z int, value core.RowValue) {
	for y := 0; y < 5; y++ {
		if (value>>uint(y))&1 != 0 {
			ax, ay, az := reverseRhoPiBeforeTheta(ctx, x, y, z)
			setBit(stateAtA, ax, ay, az)
		} else {
			bx, by, bz := directRhoPiAfterTheta(ctx, x, y, z)
			setBit(stateAtB, bx, by, bz)
		}
	}
}

// applyUnaffectedBit instantiates the single active bit of an unaffected-odd column or one leg of
// an orbital: the bit at (x, y, z) is active both before and after theta (theta cannot touch it,
// its column parity being even once the rest of the column is empty), so it is carried to both
// stateAtA and stateAtB.
func applyUnaffectedBit(ctx *propagation.Context, stateAtA, stateAtB []core.SliceValue, x, y, z int) {
	ax, ay, az := reverseRhoPiBeforeTheta(ctx, x, y, z)
	setBit(stateAtA, ax, ay, az)
	bx, by, bz := directRhoPiAfterTheta(ctx, x, y, z)
	setBit(stateAtB, bx, by, bz)
}

// twoRoundSearch holds the fixed parameters of one EnumerateTwoRoundTrailCores run; its methods
// implement the backtracking odometer of Keccak-fTrailCoreParity.cpp collapsed from three explicit
// stacks (S1 affected columns, S2 unaffected-odd columns, S3 orbitals) into nested recursion, one
// level of recursion per stage.
type twoRoundSearch struct {
	ctx           *propagation.Context
	ac, uoc       []columnPos
	oddAC         []bool // oddAC[i] is true when ac[i]'s column parity bit is odd
	allowOrbitals bool
	maxWeight     int
	numColumns    int
	results       []*trail.Trail
}

// EnumerateTwoRoundTrailCores searches every 2-round trail core whose column parity is C (with
// theta-effect D) and whose total weight (the first round's minimum reverse weight plus the
// second round's weight) does not exceed maxWeight, grounded on
// KeccakFTwoRoundTrailCoreWithGivenParityIterator: each affected column's before-theta value is
// drawn from evenColumnValues/oddColumnValues, each unaffected-odd column contributes exactly one
// active bit, and when allowOrbitals is set every empty column may additionally host zero or more
// non-overlapping orbitals (pairs of active bits, weight 2 apiece). Every result is returned as a
// *trail.Trail with FirstStateSpecified false: the first round's weight is a minimum reverse
// weight, never a materialised state, matching getTrail()'s use of
// setFirstStateReverseMinimumWeight in the reference implementation.
func EnumerateTwoRoundTrailCores(ctx *propagation.Context, c, d []core.RowValue, maxWeight int, allowOrbitals bool) []*trail.Trail {
	ac, uoc := classifyColumns(ctx, c, d)
	s := &twoRoundSearch{
		ctx:           ctx,
		ac:            ac,
		uoc:           uoc,
		oddAC:         make([]bool, len(ac)),
		allowOrbitals: allowOrbitals,
		maxWeight:     maxWeight,
		numColumns:    5 * ctx.LaneSize(),
	}
	for i, col := range ac {
		s.oddAC[i] = c[col.z]&(1<<uint(col.x)) != 0
	}
	w := ctx.LaneSize()
	s.placeAC(0, make([]core.SliceValue, w), make([]core.SliceValue, w))
	return s.results
}

func (s *twoRoundSearch) withinBudget(a, b []core.SliceValue) (w0, w1 int, ok bool) {
	w0 = s.ctx.GetMinReverseWeightState(a)
	w1 = s.ctx.GetWeightState(b)
	return w0, w1, w0+w1 <= s.maxWeight
}

func (s *twoRoundSearch) placeAC(i int, a, b []core.SliceValue) {
	if i == len(s.ac) {
		s.placeUOC(0, a, b, nil)
		return
	}
	col := s.ac[i]
	values := evenColumnValues[:]
	if s.oddAC[i] {
		values = oddColumnValues[:]
	}
	for _, v := range values {
		a2 := append([]core.SliceValue(nil), a...)
		b2 := append([]core.SliceValue(nil), b...)
		applyColumnValue(s.ctx, a2, b2, col.x, col.z, v)
		if _, _, ok := s.withinBudget(a2, b2); !ok {
			continue
		}
		s.placeAC(i+1, a2, b2)
	}
}

func (s *twoRoundSearch) placeUOC(i int, a, b []core.SliceValue, chosenY []int) {
	if i == len(s.uoc) {
		floor := make([]int, s.numColumns)
		for idx, col := range s.uoc {
			floor[columnIndex(col.x, col.z)] = chosenY[idx] + 1
		}
		for _, col := range s.ac {
			floor[columnIndex(col.x, col.z)] = 5
		}
		s.placeOrbitals(0, floor, a, b)
		return
	}
	col := s.uoc[i]
	for y := 0; y < 5; y++ {
		a2 := append([]core.SliceValue(nil), a...)
		b2 := append([]core.SliceValue(nil), b...)
		applyUnaffectedBit(s.ctx, a2, b2, col.x, y, col.z)
		if _, _, ok := s.withinBudget(a2, b2); !ok {
			continue
		}
		s.placeUOC(i+1, a2, b2, append(chosenY, y))
	}
}

func columnIndex(x, z int) int { return x + 5*z }
func columnXZ(c int) (x, z int) { return c % 5, c / 5 }

// placeOrbitals emits the state at every node of the orbital search (zero or more orbitals is
// always valid) and, when allowed, extends it with one more orbital in column c at or after
// floor[c], then recurses so the next orbital may land later in the same column (y0 > the one just
// placed) or in any later column.
func (s *twoRoundSearch) placeOrbitals(startCol int, floor []int, a, b []core.SliceValue) {
	if w0, w1, ok := s.withinBudget(a, b); ok {
		s.results = append(s.results, twoRoundTrail(w0, b, w1))
	}
	if !s.allowOrbitals {
		return
	}
	for c := startCol; c < s.numColumns; c++ {
		x, z := columnXZ(c)
		for y0 := floor[c]; y0 <= 3; y0++ {
			for y1 := y0 + 1; y1 <= 4; y1++ {
				a2 := append([]core.SliceValue(nil), a...)
				b2 := append([]core.SliceValue(nil), b...)
				applyUnaffectedBit(s.ctx, a2, b2, x, y0, z)
				applyUnaffectedBit(s.ctx, a2, b2, x, y1, z)
				if _, _, ok := s.withinBudget(a2, b2); !ok {
					continue
				}
				newFloor := append([]int(nil), floor...)
				newFloor[c] = y1 + 1
				s.placeOrbitals(c, newFloor, a2, b2)
			}
		}
	}
}

func twoRoundTrail(firstWeight int, b []core.SliceValue, secondWeight int) *trail.Trail {
	t := trail.New()
	t.SetFirstStateReverseMinimumWeight(firstWeight)
	t.Append(append([]core.SliceValue(nil), b...), secondWeight)
	return t
}
