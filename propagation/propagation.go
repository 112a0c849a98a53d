// Package propagation ties the permutation engine (keccakf) and the DC/LC tables (dclc) to a
// chosen propagation direction — differential (DC) or linear (LC) cryptanalysis — exposing the
// direct/reverse λ, per-state/per-slice weight, χ-compatibility and lower-bound utilities that the
// rest of the toolkit (affine-space construction, trail checking, trail extension, parity search)
// is built on. It also implements the reverse-state iterator (spec §4.6): the enumeration of χ
// preimages of a state within a weight budget, in odometer order over its active rows.
package propagation

import (
	"github.com/kecclab/trails/affine"
	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/dclc"
	"github.com/kecclab/trails/keccakf"
)

// Mode selects differential (DC) or linear (LC) cryptanalysis.
type Mode int

const (
	// DC is differential cryptanalysis.
	DC Mode = iota
	// LC is linear cryptanalysis.
	LC
)

func (m Mode) String() string {
	if m == DC {
		return "DC"
	}
	return "LC"
}

// Context binds a Keccak-f instance and its DC/LC tables to a propagation Mode.
type Context struct {
	k    *keccakf.KeccakF
	d    *dclc.DCLC
	mode Mode

	// DirectList holds, for each of the 32 input rows, the forward-direction output patterns:
	// diffChi for DC, corrInvChi for LC.
	DirectList [32]dclc.ListOfRowPatterns
	// ReverseList holds the reverse-direction output patterns: diffInvChi for DC, corrChi for LC.
	ReverseList [32]dclc.ListOfRowPatterns
	// AffinePerInput is the affine-space representation of DirectList[row], one per input row.
	AffinePerInput [32]*affine.RowSpace

	lambdaMode        dclc.LambdaMode
	reverseLambdaMode dclc.LambdaMode

	chiCompat [32][32]bool

	weightCache      map[core.SliceValue]int
	minReverseCache  map[core.SliceValue]int
}

// New builds a propagation Context for k (whose DC/LC tables are d) in the given mode.
func New(k *keccakf.KeccakF, d *dclc.DCLC, mode Mode) *Context {
	c := &Context{k: k, d: d, mode: mode}
	if mode == DC {
		c.DirectList = d.DiffChi
		c.ReverseList = d.DiffInvChi
		c.lambdaMode = dclc.Straight
		c.reverseLambdaMode = dclc.Inverse
	} else {
		c.DirectList = d.CorrInvChi
		c.ReverseList = d.CorrChi
		c.lambdaMode = dclc.Transpose
		c.reverseLambdaMode = dclc.Dual
	}
	for row := 0; row < 32; row++ {
		c.AffinePerInput[row] = affine.NewRowSpace(c.DirectList[row].Values())
	}
	c.initChiCompatibility()
	c.weightCache = make(map[core.SliceValue]int)
	c.minReverseCache = make(map[core.SliceValue]int)
	return c
}

// Mode returns the propagation type (DC or LC) of this Context.
func (c *Context) Mode() Mode { return c.mode }

// KeccakF returns the Keccak-f instance this Context was built for.
func (c *Context) KeccakF() *keccakf.KeccakF { return c.k }

// LaneSize returns the lane size (number of slices) of the underlying instance.
func (c *Context) LaneSize() int { return c.k.LaneSize() }

func (c *Context) initChiCompatibility() {
	for before := core.RowValue(0); before < 32; before++ {
		for _, p := range c.DirectList[before].Patterns {
			c.chiCompat[before][p.Value] = true
		}
	}
}

// IsChiCompatible reports whether before (at the input of χ) is compatible with after (at the
// output of χ), i.e. after is among before's direct-list output patterns.
func (c *Context) IsChiCompatible(before, after core.RowValue) bool {
	return c.chiCompat[before][after]
}

// IsChiCompatibleState reports whether beforeChi and afterChi (states given as laneSize slices)
// are compatible row-by-row, across every slice.
func (c *Context) IsChiCompatibleState(beforeChi, afterChi []core.SliceValue) bool {
	for z := range beforeChi {
		for y := 0; y < 5; y++ {
			if !c.IsChiCompatible(core.RowFromSlice(beforeChi[z], y), core.RowFromSlice(afterChi[z], y)) {
				return false
			}
		}
	}
	return true
}

// GetWeight returns the propagation weight of a single slice value, summing the affine-space
// weight of each of its five rows. Memoized per Context (slice values repeat heavily across a
// search), matching spec §5's "no global singletons... lives as long as that instance" policy.
func (c *Context) GetWeight(slice core.SliceValue) int {
	if w, ok := c.weightCache[slice]; ok {
		return w
	}
	w := 0
	for y := 0; y < 5; y++ {
		row := core.RowFromSlice(slice, y)
		w += c.AffinePerInput[row].Weight()
	}
	c.weightCache[slice] = w
	return w
}

// GetWeightState sums GetWeight over every slice of state.
func (c *Context) GetWeightState(state []core.SliceValue) int {
	w := 0
	for _, s := range state {
		w += c.GetWeight(s)
	}
	return w
}

// GetMinReverseWeight returns the minimum weight, over all χ-preimages of slice, summing the
// reverse-list minimum weight of each of its five rows.
func (c *Context) GetMinReverseWeight(slice core.SliceValue) int {
	if w, ok := c.minReverseCache[slice]; ok {
		return w
	}
	w := 0
	for y := 0; y < 5; y++ {
		row := core.RowFromSlice(slice, y)
		w += c.ReverseList[row].MinWeight
	}
	c.minReverseCache[slice] = w
	return w
}

// GetMinReverseWeightState sums GetMinReverseWeight over every slice of state.
func (c *Context) GetMinReverseWeightState(state []core.SliceValue) int {
	w := 0
	for _, s := range state {
		w += c.GetMinReverseWeight(s)
	}
	return w
}

// GetMinReverseWeightAfterLambda applies ReverseLambda to state and returns the minimum reverse
// weight of the result — used to score a trail core's first, unmaterialized state (spec §3,
// "firstStateSpecified").
func (c *Context) GetMinReverseWeightAfterLambda(state []core.SliceValue) int {
	return c.GetMinReverseWeightState(c.ReverseLambda(state))
}

// DirectLambda applies λ in the "direct" direction (DC: θ,ρ,π; LC: π⁻¹,ρ⁻¹,θᵀ).
func (c *Context) DirectLambda(in []core.SliceValue) []core.SliceValue {
	return c.d.Lambda(in, c.lambdaMode)
}

// ReverseLambda applies λ in the "reverse" direction (DC: π⁻¹,ρ⁻¹,θ⁻¹; LC: θ⁻¹ᵀ,ρ,π).
func (c *Context) ReverseLambda(in []core.SliceValue) []core.SliceValue {
	return c.d.Lambda(in, c.reverseLambdaMode)
}

// DirectLambdaBeforeTheta applies the part of direct λ before θ.
func (c *Context) DirectLambdaBeforeTheta(in []core.SliceValue) []core.SliceValue {
	return c.d.LambdaBeforeTheta(in, c.lambdaMode)
}

// IsThetaJustAfterChi reports whether direct λ's before-θ part is the identity (DC: true, LC:
// false), i.e. whether θ is the very first step applied after χ.
func (c *Context) IsThetaJustAfterChi() bool {
	return dclc.ThetaJustAfterChi(c.lambdaMode)
}

// ThetaGap returns the number of active columns (nonzero column parity) where the θ-effect is
// zero (see [Context.ThetaGapFromParity]), the standard trail-quality metric referenced by spec §4.5's "gap of θ" (supplemented
// per SPEC_FULL.md §12 from Keccak-fDCLC.h's getThetaGap).
func (c *Context) ThetaGap(state []core.SliceValue) int {
	parity := core.Parity(state)
	return c.ThetaGapFromParity(parity)
}

// ThetaEffect returns D, the θ-effect vector, given the column parity vector parity (spec §4.3).
// Exposed for packages (paritysearch) that need D directly rather than only the θ-gap count.
func (c *Context) ThetaEffect(parity []core.RowValue) []core.RowValue {
	return c.thetaEffectFromParity(parity)
}

// ThetaGapFromParity computes the θ-gap directly from a parity vector (one RowValue-shaped column
// parity pattern per slice): the count of (x,z) positions where column x is active at z but the
// θ-effect there is zero (DC) or where the transposed θ-effect is zero (LC).
func (c *Context) ThetaGapFromParity(parity []core.RowValue) int {
	effect := c.thetaEffectFromParity(parity)
	gap := 0
	for z := range parity {
		for x := 0; x < 5; x++ {
			active := (parity[z]>>uint(x))&1 != 0
			affected := (effect[z]>>uint(x))&1 != 0
			if active && !affected {
				gap++
			}
		}
	}
	return gap
}

// thetaEffectFromParity computes D_x = rot(C_{x+1},1) xor C_{x-1} for DC, or its transposed form
// D_x = rot(C_{x-1},-1) xor C_{x+1} for LC (spec §4.3). C_x is a w-bit lane (one bit per z) built
// from the per-z column-parity vector; the rotation is along z, not within a row, so parity is
// first regrouped from "5-bit row per z" into "w-bit lane per x" before rotating.
func (c *Context) thetaEffectFromParity(parity []core.RowValue) []core.RowValue {
	w := len(parity)
	var cCol [5]core.LaneValue
	for x := 0; x < 5; x++ {
		var lane core.LaneValue
		for z := 0; z < w; z++ {
			if (parity[z]>>uint(x))&1 != 0 {
				lane |= core.LaneValue(1) << uint(z)
			}
		}
		cCol[x] = lane
	}

	var dCol [5]core.LaneValue
	for x := 0; x < 5; x++ {
		if c.mode == DC {
			dCol[x] = c.k.Rol(cCol[core.IndexX(x+1)], 1) ^ cCol[core.IndexX(x-1)]
		} else {
			dCol[x] = c.k.Rol(cCol[core.IndexX(x-1)], -1) ^ cCol[core.IndexX(x+1)]
		}
	}

	out := make([]core.RowValue, w)
	for z := 0; z < w; z++ {
		var r core.RowValue
		for x := 0; x < 5; x++ {
			if (dCol[x]>>uint(z))&1 != 0 {
				r |= core.RowValue(1) << uint(x)
			}
		}
		out[z] = r
	}
	return out
}

// BuildStateBase builds the affine space of all λ(v) for v χ-compatible with state (a state before
// χ, given as laneSize slices), following the construction in spec §4.7 step 3 / the original's
// buildStateBase: for every active row, each of its affine generators is propagated through λ and
// λ-before-θ to produce a state-level generator and its parity-before-θ; the offset is λ applied
// to the state made of each row's affine-space offset.
func (c *Context) BuildStateBase(state []core.SliceValue, packedIfPossible bool) *affine.StateSpace {
	w := c.LaneSize()
	packed := packedIfPossible && affine.CanPack(w)

	var genValues [][]core.SliceValue
	var genParitiesPacked []affine.PackedParity
	var genParities [][]core.RowValue

	offset := make([]core.SliceValue, w)
	for z := 0; z < w; z++ {
		for y := 0; y < 5; y++ {
			row := core.RowFromSlice(state[z], y)
			offset[z] ^= core.SliceFromRow(c.AffinePerInput[row].Offset, y)
			for _, b := range c.AffinePerInput[row].Generators {
				v := make([]core.SliceValue, w)
				v[z] = core.SliceFromRow(b, y)
				stateAfterLambda := c.DirectLambda(v)
				genValues = append(genValues, stateAfterLambda)
				stateBeforeTheta := c.DirectLambdaBeforeTheta(v)
				if packed {
					genParitiesPacked = append(genParitiesPacked, affine.Pack(core.Parity(stateBeforeTheta)))
				} else {
					genParities = append(genParities, core.Parity(stateBeforeTheta))
				}
			}
		}
	}

	offsetAfterLambda := c.DirectLambda(offset)
	offsetBeforeTheta := c.DirectLambdaBeforeTheta(offset)

	if packed {
		return affine.NewStateSpacePacked(w, genValues, genParitiesPacked, offsetAfterLambda, affine.Pack(core.Parity(offsetBeforeTheta)))
	}
	return affine.NewStateSpaceUnpacked(w, genValues, genParities, offsetAfterLambda, core.Parity(offsetBeforeTheta))
}

// GetLowerBoundOnWeightGivenHammingWeightAndNrActiveRows returns a closed-form lower bound on the
// propagation weight of any state of the given Hamming weight active in at most nrActiveRows rows
// (spec §4.3, formulae from the reference paper).
func (c *Context) GetLowerBoundOnWeightGivenHammingWeightAndNrActiveRows(hammingWeight, nrActiveRows int) int {
	if hammingWeight > 5*nrActiveRows {
		nrActiveRows = (hammingWeight + 4) / 5
	}
	if c.mode == DC {
		if hammingWeight <= nrActiveRows {
			return 2 * nrActiveRows
		}
		return (hammingWeight + 3*nrActiveRows + 1) / 2
	}
	if 2*hammingWeight <= nrActiveRows {
		return 2 * nrActiveRows
	}
	return 2 * ((hammingWeight + nrActiveRows + 2) / 3)
}

// GetLowerBoundOnWeightGivenHammingWeight returns the same bound, inferring the minimum possible
// number of active rows (⌈hammingWeight/5⌉) for the given Hamming weight.
func (c *Context) GetLowerBoundOnWeightGivenHammingWeight(hammingWeight int) int {
	nrActiveRows := (hammingWeight + 4) / 5
	return c.GetLowerBoundOnWeightGivenHammingWeightAndNrActiveRows(hammingWeight, nrActiveRows)
}

// GetReverseStateIterator returns a [ReverseStateIterator] over the χ-preimages of stateAfterChi,
// bounded by maxWeight (0 means unbounded — the maximum possible weight is used).
func (c *Context) GetReverseStateIterator(stateAfterChi []core.SliceValue, maxWeight int) *ReverseStateIterator {
	if maxWeight == 0 {
		maxWeight = 4 * 5 * len(stateAfterChi)
	}
	return newReverseStateIterator(c, stateAfterChi, maxWeight)
}
