package keccakf

import "github.com/kecclab/trails/core"

// Star conjugates a KeccakP instance by π: Star(s) = π(KeccakF(π⁻¹(s))). It is included as a
// non-default permutation mode for completeness (its test vectors are not documented in the
// reference literature — see DESIGN.md Open Questions).
type Star struct {
	*KeccakF
}

// NewStar returns a π-conjugated Keccak-p[width, nrRounds] variant.
func NewStar(width, nrRounds int) (*Star, error) {
	p, err := NewP(width, nrRounds)
	if err != nil {
		return nil, err
	}
	return &Star{p}, nil
}

// GetName overrides KeccakF.GetName with the KeccakPStar naming convention.
func (s *Star) GetName() string {
	return "KeccakPStar" + s.KeccakF.GetName()[len("KeccakF"):]
}

// ForwardStar applies π⁻¹, the underlying forward permutation, then π, in place.
func (s *Star) ForwardStar(lanes []core.LaneValue) {
	s.InversePi(lanes)
	s.KeccakF.Forward(lanes)
	s.Pi(lanes)
}

// InverseStar applies π⁻¹, the underlying inverse permutation, then π, in place.
func (s *Star) InverseStar(lanes []core.LaneValue) {
	s.InversePi(lanes)
	s.KeccakF.Inverse(lanes)
	s.Pi(lanes)
}
