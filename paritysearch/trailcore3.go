package paritysearch

import (
	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/propagation"
	"github.com/kecclab/trails/trail"
)

// threeRoundSearch holds the fixed parameters of one TrailCore3Rounds run. It fills the empty
// slices between the background's already-active ("knot") slices of B with single-bit chain
// points, collapsing Keccak-fTrailCore3Rounds.cpp's explicit knot/chain/vortex bookkeeping (a
// vector of chains plus a vortex database) into one recursive per-gap odometer: every chain here
// is a contiguous run of slices strictly between two consecutive background knots (cyclically
// along z), each slice independently left empty or given one active bit.
type threeRoundSearch struct {
	ctx        *propagation.Context
	background []core.SliceValue
	maxWeight  int
	w          int
	gaps       [][2]int // {z of the knot the gap starts after, number of empty slices in the gap}
	results    []*trail.Trail
}

// TrailCore3Rounds searches every 3-round trail core built on the given background (the first
// round's materialised state) whose total weight does not exceed maxWeight, grounded on
// TrailCore3Rounds/Keccak-fTrailCoreParity.cpp's knot-and-chain model: background's image through
// lambda fixes the knot slices of the middle round, knots classifies them via the table built by
// BuildKnotInfoTable to prune backgrounds whose knots alone already demand more weight than the
// budget allows, and the remaining empty slices between consecutive knots are filled with chains
// of single active bits up to the weight budget. knots may be nil to skip that early prune. The
// third round is completed by carrying each middle-round row through its minimum-weight compatible
// chi output (the same per-row affine offset ClassifySlice uses) and then through lambda. Every
// result is a *trail.Trail with FirstStateSpecified false, matching the reference's convention that
// a trail core's first round is reported only via its minimum reverse weight.
func TrailCore3Rounds(ctx *propagation.Context, knots *KnotInfoTable, background []core.SliceValue, maxWeight int) []*trail.Trail {
	w := ctx.LaneSize()
	b0 := ctx.DirectLambda(background)

	var knotZ []int
	for z, s := range b0 {
		if core.NrActiveRows(s) > 0 {
			knotZ = append(knotZ, z)
		}
	}
	if len(knotZ) == 0 {
		return nil
	}

	w0 := ctx.GetMinReverseWeightState(background)
	if knots != nil {
		deficitBudget := maxWeight - w0
		sumDeficit := 0
		for _, z := range knotZ {
			sumDeficit += knots.Get(b0[z]).KnotWeightAtBDeficit()
		}
		if sumDeficit > deficitBudget {
			return nil
		}
	}

	s := &threeRoundSearch{ctx: ctx, background: background, maxWeight: maxWeight, w: w}
	s.gaps = make([][2]int, 0, len(knotZ))
	for i, z := range knotZ {
		next := knotZ[(i+1)%len(knotZ)]
		gapLen := mod(next-z, w) - 1
		if gapLen < 0 {
			gapLen = 0
		}
		s.gaps = append(s.gaps, [2]int{z, gapLen})
	}
	s.fillGap(0, 0, append([]core.SliceValue(nil), b0...), w0)
	return s.results
}

func (s *threeRoundSearch) fillGap(gapIdx, pos int, b []core.SliceValue, w0 int) {
	if gapIdx == len(s.gaps) {
		s.emit(b, w0)
		return
	}
	startZ, gapLen := s.gaps[gapIdx][0], s.gaps[gapIdx][1]
	if pos == gapLen {
		s.fillGap(gapIdx+1, 0, b, w0)
		return
	}
	z := mod(startZ+1+pos, s.w)

	s.fillGap(gapIdx, pos+1, b, w0)

	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			b2 := append([]core.SliceValue(nil), b...)
			setBit(b2, x, y, z)
			if w0+s.ctx.GetWeightState(b2) > s.maxWeight {
				continue
			}
			s.fillGap(gapIdx, pos+1, b2, w0)
		}
	}
}

func (s *threeRoundSearch) emit(b []core.SliceValue, w0 int) {
	w1 := s.ctx.GetWeightState(b)
	if w0+w1 > s.maxWeight {
		return
	}

	afterChi := make([]core.SliceValue, len(b))
	for z, slice := range b {
		var rows [5]core.RowValue
		for y := 0; y < 5; y++ {
			row := core.RowFromSlice(slice, y)
			rows[y] = s.ctx.AffinePerInput[row].Offset
		}
		afterChi[z] = core.SliceFromRows(rows)
	}
	c := s.ctx.DirectLambda(afterChi)
	w2 := s.ctx.GetWeightState(c)
	if w0+w1+w2 > s.maxWeight {
		return
	}

	t := trail.New()
	t.SetFirstStateReverseMinimumWeight(w0)
	t.Append(append([]core.SliceValue(nil), b...), w1)
	t.Append(c, w2)
	s.results = append(s.results, t)
}
