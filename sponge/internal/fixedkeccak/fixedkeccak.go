// Package fixedkeccak adapts the generalized, arbitrary-width permutation engine in package
// keccakf into the one fixed-width primitive the byte-oriented sponge constructions in package
// sponge need: Keccak-p[1600,12], operating on a 200-byte state buffer.
//
// The cryptanalytic core has no use for a fast fixed-width permutation, so this package exists
// only to give the out-of-scope "byte-oriented sponge and tree-sponge constructions" collaborator
// (see SPEC_FULL.md §11) a concrete permutation to call, without duplicating θ/ρ/π/χ/ι a second
// time. There is deliberately no SIMD or multi-lane parallel path here: sponge is a thin
// demonstration wrapper, not a performance-engineered primitive.
package fixedkeccak

import "github.com/kecclab/trails/keccakf"

var p1600 = mustKeccakP(1600, 12)

func mustKeccakP(width, nrRounds int) *keccakf.KeccakF {
	k, err := keccakf.NewP(width, nrRounds)
	if err != nil {
		panic(err)
	}
	return k
}

// P1600 applies the Keccak-p[1600, 12] permutation to state, in place.
func P1600(state *[200]byte) {
	lanes := p1600.FromBytesToLanes(state[:])
	p1600.Forward(lanes)
	copy(state[:], p1600.FromLanesToBytes(lanes))
}
