// Package trail implements the trail model of spec §4.5: an ordered sequence of before-χ states
// with per-round propagation weights, its invariants, verification against a propagation context,
// and the textual file serialisation contract of spec §6.
package trail

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/propagation"
)

// Trail is a sequence of states before χ with per-state propagation weights.
type Trail struct {
	// FirstStateSpecified tells whether States[0] is a materialised state. If false, Weights[0]
	// is the minimum reverse weight of λ⁻¹(States[1]) and the trail is a "trail core".
	FirstStateSpecified bool
	// States holds the before-χ state for each round, each given as LaneSize slices.
	States [][]core.SliceValue
	// StateAfterLastChiSpecified tells whether StateAfterLastChi holds a materialised state.
	StateAfterLastChiSpecified bool
	// StateAfterLastChi is the state just after the χ of the final round, when specified.
	StateAfterLastChi []core.SliceValue
	// Weights holds the propagation weight of each state in States (same length as States).
	Weights []int
	// TotalWeight is the sum of Weights.
	TotalWeight int
}

// New returns an empty trail.
func New() *Trail {
	return &Trail{}
}

// NumberOfRounds returns the number of states (rounds) in the trail.
func (t *Trail) NumberOfRounds() int { return len(t.States) }

// SetFirstStateReverseMinimumWeight sets Weights[0] for a trail core whose first state is not
// materialised (FirstStateSpecified == false).
func (t *Trail) SetFirstStateReverseMinimumWeight(weight int) {
	if len(t.Weights) == 0 {
		t.Weights = append(t.Weights, weight)
		t.TotalWeight += weight
		return
	}
	t.TotalWeight += weight - t.Weights[0]
	t.Weights[0] = weight
}

// Append adds state to the end of the trail with the given propagation weight.
func (t *Trail) Append(state []core.SliceValue, weight int) {
	t.States = append(t.States, state)
	t.Weights = append(t.Weights, weight)
	t.TotalWeight += weight
}

// AppendTrail appends every state of other to the end of this trail.
func (t *Trail) AppendTrail(other *Trail) {
	for i, s := range other.States {
		t.Append(s, other.Weights[i])
	}
	if other.StateAfterLastChiSpecified {
		t.StateAfterLastChiSpecified = true
		t.StateAfterLastChi = other.StateAfterLastChi
	}
}

// Prepend inserts state at the beginning of the trail with the given propagation weight.
func (t *Trail) Prepend(state []core.SliceValue, weight int) {
	t.States = append([][]core.SliceValue{state}, t.States...)
	t.Weights = append([]int{weight}, t.Weights...)
	t.TotalWeight += weight
}

// Clear empties the trail.
func (t *Trail) Clear() {
	*t = Trail{}
}

// Check verifies every invariant named in spec §4.5 against ctx: consecutive states are
// χ-compatible through λ, the declared per-state weights match the recomputed propagation
// weights, and TotalWeight is their sum. It returns the first violation found, wrapped as a
// *core.Error, or nil if the trail is well-formed.
func (t *Trail) Check(ctx *propagation.Context) error {
	if len(t.States) != len(t.Weights) {
		return &core.Error{Kind: core.WeightInconsistency, Msg: "states/weights length mismatch"}
	}

	for i, s := range t.States {
		var expected int
		if i == 0 {
			if t.FirstStateSpecified {
				expected = ctx.GetWeightState(s)
			} else {
				expected = ctx.GetMinReverseWeightAfterLambda(t.States[1])
			}
		} else {
			expected = ctx.GetWeightState(s)
			// States[i-1] is before chi of round i-1; its reverse-lambda of the current state
			// gives the implied after-chi value of round i-1, which must be chi-compatible.
			reverseOfCurrent := ctx.ReverseLambda(s)
			if !ctx.IsChiCompatibleState(t.States[i-1], reverseOfCurrent) {
				return &core.Error{Kind: core.IncompatibleChiTransition, Round: i, Msg: "state not chi-compatible with previous round"}
			}
		}
		if expected != t.Weights[i] {
			return &core.Error{Kind: core.WeightInconsistency, Round: i, Expected: expected, Found: t.Weights[i]}
		}
	}

	if t.StateAfterLastChiSpecified && len(t.States) > 0 {
		last := t.States[len(t.States)-1]
		if !ctx.IsChiCompatibleState(last, t.StateAfterLastChi) {
			return &core.Error{Kind: core.IncompatibleChiTransition, Round: len(t.States), Msg: "state after last chi not compatible"}
		}
	}

	total := 0
	for _, w := range t.Weights {
		total += w
	}
	if total != t.TotalWeight {
		return &core.Error{Kind: core.WeightInconsistency, Expected: total, Found: t.TotalWeight, Msg: "total weight mismatch"}
	}
	return nil
}

// Save writes the trail to w in the format of spec §6: one line, whitespace separated hex fields
// -- lane size, total weight, number of states, each state's weight, then each state's slice
// values (state-major then z-major).
func (t *Trail) Save(w io.Writer) error {
	laneSize := 0
	if len(t.States) > 0 {
		laneSize = len(t.States[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%x %x %x", laneSize, t.TotalWeight, len(t.States))
	for _, weight := range t.Weights {
		fmt.Fprintf(&b, " %x", weight)
	}
	for _, state := range t.States {
		for _, slice := range state {
			fmt.Fprintf(&b, " %x", uint32(slice))
		}
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// Load reads one trail from r in the §6 format. It returns io.EOF (unwrapped) if the stream is
// exhausted before the first field, per spec §6's "a missing trail is detected on read by reaching
// EOF before field 1"; any other malformed input yields a *core.Error with Kind ==
// core.TrailParseError.
func Load(r *bufio.Reader) (*Trail, error) {
	fields, atByte, err := readFields(r)
	for err == nil && len(fields) == 0 {
		fields, atByte, err = readFields(r)
	}
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, io.EOF
	}

	idx := 0
	next := func(what string) (uint64, error) {
		if idx >= len(fields) {
			return 0, &core.Error{Kind: core.TrailParseError, AtByte: atByte, Msg: "unexpected end of line reading " + what}
		}
		v, err := strconv.ParseUint(fields[idx], 16, 64)
		if err != nil {
			return 0, &core.Error{Kind: core.TrailParseError, AtByte: atByte, Msg: "invalid hex field for " + what}
		}
		idx++
		return v, nil
	}

	laneSize, err := next("lane size")
	if err != nil {
		return nil, err
	}
	totalWeight, err := next("total weight")
	if err != nil {
		return nil, err
	}
	n, err := next("number of states")
	if err != nil {
		return nil, err
	}

	t := &Trail{FirstStateSpecified: true}
	weights := make([]int, n)
	for i := range weights {
		v, err := next(fmt.Sprintf("weight[%d]", i))
		if err != nil {
			return nil, err
		}
		weights[i] = int(v)
	}
	states := make([][]core.SliceValue, n)
	for i := range states {
		state := make([]core.SliceValue, laneSize)
		for z := range state {
			v, err := next(fmt.Sprintf("state[%d][%d]", i, z))
			if err != nil {
				return nil, err
			}
			state[z] = core.SliceValue(v)
		}
		states[i] = state
	}
	t.States = states
	t.Weights = weights
	t.TotalWeight = int(totalWeight)
	return t, nil
}

// readFields reads one line and splits it on whitespace, also returning the length of the
// trimmed line (best-effort; used only for TrailParseError.AtByte, and not an offset into the
// stream). A blank line yields no fields and a nil error.
func readFields(r *bufio.Reader) ([]string, int64, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, nil
	}
	return strings.Fields(line), int64(len(line)), nil
}

// SaveAll writes every trail in trails, one per line.
func SaveAll(w io.Writer, trails []*Trail) error {
	for _, t := range trails {
		if err := t.Save(w); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll reads every trail from r until EOF.
func LoadAll(r io.Reader) ([]*Trail, error) {
	br := bufio.NewReader(r)
	var out []*Trail
	for {
		t, err := Load(br)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
}

// FilterFunc decides whether to keep a trail when iterating a file with [LoadAllFiltered].
type FilterFunc func(ctx *propagation.Context, t *Trail) bool

// LoadAllFiltered reads every trail from r, keeping only those for which keep returns true.
func LoadAllFiltered(r io.Reader, ctx *propagation.Context, keep FilterFunc) ([]*Trail, error) {
	all, err := LoadAll(r)
	if err != nil {
		return nil, err
	}
	if keep == nil {
		return all, nil
	}
	var out []*Trail
	for _, t := range all {
		if keep(ctx, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// IsKernel reports whether state has zero column parity (the Kernel glossary entry): θ acts as
// the identity on such states.
func IsKernel(state []core.SliceValue) bool {
	for _, p := range core.Parity(state) {
		if p != 0 {
			return false
		}
	}
	return true
}

// Display writes a human-readable rendering of the trail to w: per-round weight, θ-gap, a
// kernel/non-kernel marker, and the active-row count, following spec §4.5's display contract
// (supplemented per SPEC_FULL.md §12 with the kernel marker and θ-gap, both absent from the
// distilled spec's abstract "display(context)" but named explicitly in its prose).
func (t *Trail) Display(ctx *propagation.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	fmt.Fprintf(bw, "Trail of %d rounds, total weight %d\n", len(t.States), t.TotalWeight)
	for i, s := range t.States {
		kernel := "non-kernel"
		if IsKernel(s) {
			kernel = "kernel"
		}
		activeRows := 0
		for _, slice := range s {
			activeRows += core.NrActiveRows(slice)
		}
		fmt.Fprintf(bw, "  round %2d: weight %3d  theta-gap %2d  %s  active rows %d\n",
			i, t.Weights[i], ctx.ThetaGap(s), kernel, activeRows)
	}
	return nil
}
