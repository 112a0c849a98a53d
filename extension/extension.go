// Package extension implements trail extension (spec §4.7): growing a trail core or prefix one
// round at a time, forward via the affine-space-of-states construction (or an optional
// known-small-weight-states shortcut) and backward via the reverse-state iterator, pruned with a
// combinable table of known per-round-count lower bounds.
package extension

import (
	"bufio"
	"io"

	"github.com/kecclab/trails/affine"
	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/propagation"
	"github.com/kecclab/trails/trail"
)

// Bounds maintains a table of minimum trail weights indexed by round count: explicitly set values
// are used as-is, and any unset round count is interpolated as the best known combination of two
// shorter, explicitly-or-already-interpolated bounds (spec §4.7 "known lower bounds").
type Bounds struct {
	explicit map[int]int
	minWeight []int
}

// NewBounds returns an empty bounds table.
func NewBounds() *Bounds {
	return &Bounds{explicit: make(map[int]int)}
}

// ExcludeBelowWeight records that no trail of nrRounds rounds has weight below weight.
func (b *Bounds) ExcludeBelowWeight(nrRounds, weight int) {
	b.explicit[nrRounds] = weight
	b.minWeight = nil
}

// GetMinWeight returns the known or interpolated minimum weight for nrRounds rounds.
func (b *Bounds) GetMinWeight(nrRounds int) int {
	if nrRounds <= 0 {
		return 0
	}
	if nrRounds > len(b.minWeight) {
		b.compute(nrRounds)
	}
	return b.minWeight[nrRounds-1]
}

func (b *Bounds) compute(upTo int) {
	b.minWeight = b.minWeight[:0]
	for n := 1; n <= upTo; n++ {
		if v, ok := b.explicit[n]; ok {
			b.minWeight = append(b.minWeight, v)
			continue
		}
		max := 0
		for n1 := 1; n1 <= n-1; n1++ {
			n2 := n - n1
			if sum := b.minWeight[n1-1] + b.minWeight[n2-1]; sum > max {
				max = sum
			}
		}
		b.minWeight = append(b.minWeight, max)
	}
}

// DefaultBounds seeds a Bounds table with the width/mode-specific constants named in spec §4.7 and
// SPEC_FULL.md §12: bound(1)=2 and bound(2)=8 hold for every width and mode; the 3-round seeds are
// the literature values available for the widths the original toolkit shipped with.
func DefaultBounds(width int, mode propagation.Mode) *Bounds {
	b := NewBounds()
	b.ExcludeBelowWeight(1, 2)
	b.ExcludeBelowWeight(2, 8)
	switch width {
	case 200:
		if mode == propagation.LC {
			b.ExcludeBelowWeight(3, 20)
		}
	case 1600:
		if mode == propagation.DC {
			b.ExcludeBelowWeight(3, 32)
		} else {
			b.ExcludeBelowWeight(3, 36)
		}
	}
	return b
}

func activeRows(state []core.SliceValue) int {
	n := 0
	for _, s := range state {
		n += core.NrActiveRows(s)
	}
	return n
}

// KnownSmallWeightStates indexes before-χ states by their own propagation weight, keeping each as
// its λ-preimage (the state after the previous χ), enabling a
// forward-extension shortcut: instead of enumerating the full affine space of a state's
// χ-successors, look up pre-indexed low-weight candidates with a matching active-row count and
// test each for χ-compatibility (spec §4.7 "small-weight cache").
type KnownSmallWeightStates struct {
	statesAfterChiPerWeight [][][]core.SliceValue
	maxCompleteWeight       int
}

// NewKnownSmallWeightStates returns an empty set, complete up to maxCompleteWeight.
func NewKnownSmallWeightStates(maxCompleteWeight int) *KnownSmallWeightStates {
	return &KnownSmallWeightStates{
		statesAfterChiPerWeight: make([][][]core.SliceValue, maxCompleteWeight+1),
		maxCompleteWeight:       maxCompleteWeight,
	}
}

// MaxCompleteWeight returns the weight up to which this set is known to be complete.
func (k *KnownSmallWeightStates) MaxCompleteWeight() int { return k.maxCompleteWeight }

// AddState indexes a before-χ state (typically a trail state) under its own propagation weight,
// storing its λ-preimage, if that weight is within MaxCompleteWeight.
func (k *KnownSmallWeightStates) AddState(ctx *propagation.Context, state []core.SliceValue) {
	weight := ctx.GetWeightState(state)
	if weight > k.maxCompleteWeight {
		return
	}
	stateAfterChi := ctx.ReverseLambda(state)
	k.statesAfterChiPerWeight[weight] = append(k.statesAfterChiPerWeight[weight], stateAfterChi)
}

// Connect returns every before-χ state reachable from inputState (a before-χ state) through χ
// followed by λ, drawing candidates from the indexed set with weight ≤ maxWeightOut and a matching
// active-row count, each tried at every z-translation.
func (k *KnownSmallWeightStates) Connect(ctx *propagation.Context, inputState []core.SliceValue, maxWeightOut int) [][]core.SliceValue {
	inputRows := activeRows(inputState)
	var out [][]core.SliceValue
	limit := maxWeightOut
	if limit >= len(k.statesAfterChiPerWeight) {
		limit = len(k.statesAfterChiPerWeight) - 1
	}
	for weight := 2; weight <= limit; weight++ {
		for _, candidate := range k.statesAfterChiPerWeight[weight] {
			if activeRows(candidate) != inputRows {
				continue
			}
			out = append(out, connectAtEveryShift(ctx, inputState, candidate)...)
		}
	}
	return out
}

func connectAtEveryShift(ctx *propagation.Context, inputState, candidate []core.SliceValue) [][]core.SliceValue {
	laneSize := len(inputState)
	var out [][]core.SliceValue
	for z := 0; z < laneSize; z++ {
		shifted := make([]core.SliceValue, laneSize)
		for iz := range shifted {
			shifted[iz] = candidate[(iz+z)%laneSize]
		}
		if ctx.IsChiCompatibleState(inputState, shifted) {
			out = append(out, ctx.DirectLambda(shifted))
		}
	}
	return out
}

// LoadFromTrails indexes every qualifying state (weight ≤ MaxCompleteWeight) found in trails,
// skipping each trail's unmaterialised first state when present (spec §4.7's file-backed
// construction, adapted to operate on already-loaded trails rather than re-opening a file).
func (k *KnownSmallWeightStates) LoadFromTrails(ctx *propagation.Context, trails []*trail.Trail) {
	for _, t := range trails {
		start := 0
		if !t.FirstStateSpecified {
			start = 1
		}
		for i := start; i < len(t.Weights); i++ {
			if t.Weights[i] <= k.maxCompleteWeight {
				k.AddState(ctx, t.States[i])
			}
		}
	}
}

// LoadFromFile is LoadFromTrails fed by every trail read from r.
func (k *KnownSmallWeightStates) LoadFromFile(ctx *propagation.Context, r io.Reader) error {
	trails, err := trail.LoadAll(r)
	if err != nil {
		return err
	}
	k.LoadFromTrails(ctx, trails)
	return nil
}

// SaveToFile writes every indexed state as a single-round trail (the before-χ state, via λ), one
// per line, ordered by weight.
func (k *KnownSmallWeightStates) SaveToFile(ctx *propagation.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for weight, states := range k.statesAfterChiPerWeight {
		for _, stateAfterChi := range states {
			stateBeforeChi := ctx.DirectLambda(stateAfterChi)
			t := trail.New()
			t.FirstStateSpecified = true
			t.Append(stateBeforeChi, weight)
			if err := t.Save(bw); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Sink receives completed trails found during extension.
type Sink interface {
	FetchTrail(t *trail.Trail)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(t *trail.Trail)

// FetchTrail implements [Sink].
func (f SinkFunc) FetchTrail(t *trail.Trail) { f(t) }

// SliceSink collects every fetched trail into a slice.
type SliceSink struct {
	Trails []*trail.Trail
}

// FetchTrail implements [Sink].
func (s *SliceSink) FetchTrail(t *trail.Trail) { s.Trails = append(s.Trails, t) }

// Extension drives forward and backward trail extension against a propagation [Context].
type Extension struct {
	ctx    *propagation.Context
	Bounds *Bounds

	// ShowMinimalTrails, when true, also yields a trail whenever it beats the lightest trail found
	// so far for its round count, even if it exceeds maxTotalWeight.
	ShowMinimalTrails bool
	// AllPrefixes, when true, makes backward extension of a trail core look for every trail
	// prefix rather than only further trail cores.
	AllPrefixes bool
	// KnownSmallWeightStates, when set, is consulted by forward extension once the current
	// round's weight reaches 16 and maxWeightOut is within its completeness bound.
	KnownSmallWeightStates *KnownSmallWeightStates

	minWeightSoFar map[int]int
}

// New returns an Extension over ctx, with [DefaultBounds] for ctx's width and mode.
func New(ctx *propagation.Context) *Extension {
	return &Extension{
		ctx:            ctx,
		Bounds:         DefaultBounds(ctx.KeccakF().Width(), ctx.Mode()),
		minWeightSoFar: make(map[int]int),
	}
}

func (e *Extension) isLessThanMinWeightSoFar(nrRounds, weight int) bool {
	cur, ok := e.minWeightSoFar[nrRounds]
	if !ok || weight < cur {
		e.minWeightSoFar[nrRounds] = weight
		return true
	}
	return false
}

// minWeightInLookingForSmallWeightStates is the per-round weight threshold below which the
// known-small-weight-states shortcut isn't worth consulting (spec §4.7 / original constant).
const minWeightInLookingForSmallWeightStates = 16

// ForwardExtend extends t (a trail core or prefix, not a trail with a specified state after the
// last χ) to every nrRounds-round trail reachable with total weight ≤ maxTotalWeight, sending each
// to out.
func (e *Extension) ForwardExtend(t *trail.Trail, out Sink, nrRounds, maxTotalWeight int) {
	e.recurseForward(t, out, nrRounds, maxTotalWeight)
}

func (e *Extension) recurseForward(t *trail.Trail, out Sink, nrRounds, maxTotalWeight int) {
	baseWeight := t.TotalWeight
	baseNrRounds := t.NumberOfRounds()
	curNrRounds := baseNrRounds + 1
	curWeight := t.Weights[len(t.Weights)-1]
	maxWeightOut := maxTotalWeight - baseWeight - e.Bounds.GetMinWeight(nrRounds-baseNrRounds-1)
	if maxWeightOut < e.Bounds.GetMinWeight(1) {
		return
	}

	if curWeight >= minWeightInLookingForSmallWeightStates && e.KnownSmallWeightStates != nil &&
		maxWeightOut <= e.KnownSmallWeightStates.MaxCompleteWeight() {
		candidates := e.KnownSmallWeightStates.Connect(e.ctx, t.States[len(t.States)-1], maxWeightOut)
		for _, candidate := range candidates {
			e.considerForwardCandidate(t, out, nrRounds, maxTotalWeight, curNrRounds, baseWeight, maxWeightOut, candidate)
		}
		return
	}

	base := e.ctx.BuildStateBase(t.States[len(t.States)-1], true)
	it := affine.NewStatesIterator(base.OriginalGenerators, base.Offset)
	for !it.IsEnd() {
		e.considerForwardCandidate(t, out, nrRounds, maxTotalWeight, curNrRounds, baseWeight, maxWeightOut, it.Value())
		it.Next()
	}
}

func (e *Extension) considerForwardCandidate(t *trail.Trail, out Sink, nrRounds, maxTotalWeight, curNrRounds, baseWeight, maxWeightOut int, candidate []core.SliceValue) {
	weightOut := e.ctx.GetWeightState(candidate)
	curWeight := baseWeight + weightOut
	if curNrRounds == nrRounds {
		minTrail := e.ShowMinimalTrails && e.isLessThanMinWeightSoFar(curNrRounds, curWeight)
		if curWeight <= maxTotalWeight || minTrail {
			next := cloneTrail(t)
			next.Append(candidate, weightOut)
			out.FetchTrail(next)
		}
		return
	}
	if weightOut <= maxWeightOut {
		next := cloneTrail(t)
		next.Append(candidate, weightOut)
		e.recurseForward(next, out, nrRounds, maxTotalWeight)
	}
}

// BackwardExtend extends t to every nrRounds-round trail for which t is a suffix, sending each to
// out. If t is a trail core (FirstStateSpecified == false), the search looks for trail cores or,
// when e.AllPrefixes is set, every trail prefix; if t is itself a prefix, the search always looks
// for every prefix.
func (e *Extension) BackwardExtend(t *trail.Trail, out Sink, nrRounds, maxTotalWeight int) {
	if t.FirstStateSpecified {
		e.recurseBackward(t, out, nrRounds, maxTotalWeight, true)
		return
	}
	trimmed := trail.New()
	for i := 1; i < len(t.States); i++ {
		trimmed.Append(t.States[i], t.Weights[i])
	}
	e.recurseBackward(trimmed, out, nrRounds, maxTotalWeight, e.AllPrefixes)
}

func (e *Extension) recurseBackward(t *trail.Trail, out Sink, nrRounds, maxTotalWeight int, allPrefixes bool) {
	if !allPrefixes && nrRounds == t.NumberOfRounds()+1 {
		baseWeight := t.TotalWeight
		stateAfterChi := e.ctx.ReverseLambda(t.States[0])
		minReverseWeight := e.ctx.GetMinReverseWeightState(stateAfterChi)
		curWeight := baseWeight + minReverseWeight
		minTrail := e.ShowMinimalTrails && e.isLessThanMinWeightSoFar(nrRounds, curWeight)
		if curWeight <= maxTotalWeight || minTrail {
			next := trail.New()
			next.SetFirstStateReverseMinimumWeight(minReverseWeight)
			next.AppendTrail(t)
			out.FetchTrail(next)
		}
		return
	}

	baseWeight := t.TotalWeight
	baseNrRounds := t.NumberOfRounds()
	maxWeightOut := maxTotalWeight - baseWeight - e.Bounds.GetMinWeight(nrRounds-baseNrRounds-1)
	if maxWeightOut < e.Bounds.GetMinWeight(1) {
		return
	}
	stateAfterChi := e.ctx.ReverseLambda(t.States[0])
	it := e.ctx.GetReverseStateIterator(stateAfterChi, maxWeightOut)
	if it.IsEmpty() {
		return
	}
	curNrRounds := baseNrRounds + 1
	for !it.IsEnd() {
		weightOut := it.CurrentWeight()
		curWeight := baseWeight + weightOut
		candidate := append([]core.SliceValue(nil), it.Value()...)
		if curNrRounds == nrRounds {
			minTrail := e.ShowMinimalTrails && e.isLessThanMinWeightSoFar(nrRounds, curWeight)
			if curWeight <= maxTotalWeight || minTrail {
				next := cloneTrail(t)
				next.Prepend(candidate, weightOut)
				out.FetchTrail(next)
			}
		} else {
			minPrevWeight := e.ctx.GetMinReverseWeightAfterLambda(candidate)
			if curWeight+minPrevWeight+e.Bounds.GetMinWeight(nrRounds-curNrRounds-1) <= maxTotalWeight {
				next := cloneTrail(t)
				next.Prepend(candidate, weightOut)
				e.recurseBackward(next, out, nrRounds, maxTotalWeight, allPrefixes)
			}
		}
		it.Next()
	}
}

func cloneTrail(t *trail.Trail) *trail.Trail {
	next := trail.New()
	next.FirstStateSpecified = t.FirstStateSpecified
	next.AppendTrail(t)
	return next
}
