package propagation

import (
	"testing"

	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/dclc"
	"github.com/kecclab/trails/keccakf"
)

func newContext(t *testing.T, width int, mode Mode) *Context {
	t.Helper()
	k, err := keccakf.New(width)
	if err != nil {
		t.Fatalf("keccakf.New(%d): %v", width, err)
	}
	return New(k, dclc.New(k), mode)
}

// TestReverseStateIteratorOrdering checks scenario S3: for a state with a single active bit at
// (x=1, y=0, z=0), the reverse-state iterator (DC, budget 10) must enumerate exactly the
// budget-affordable entries of diffInvChi[0b00010], each translated onto row y=0 of slice 0, in the
// same non-decreasing weight order the table itself is kept in.
func TestReverseStateIteratorOrdering(t *testing.T) {
	ctx := newContext(t, 25, DC)
	if ctx.LaneSize() != 1 {
		t.Fatalf("Keccak-f[25] should have lane size 1, got %d", ctx.LaneSize())
	}

	target := []core.SliceValue{core.SliceFromRow(2, 0)} // bit (x=1, y=0)
	budget := 10

	var wantValues []core.RowValue
	var wantWeights []int
	for _, p := range ctx.ReverseList[2].Patterns {
		if p.Weight > budget {
			break
		}
		wantValues = append(wantValues, p.Value)
		wantWeights = append(wantWeights, p.Weight)
	}
	if len(wantValues) == 0 {
		t.Fatalf("fixture assumption broken: no affordable reverse pattern for row 2 within budget %d", budget)
	}

	it := ctx.GetReverseStateIterator(target, budget)
	var gotValues []core.RowValue
	var gotWeights []int
	for !it.IsEnd() {
		state := it.Value()
		gotValues = append(gotValues, core.RowFromSlice(state[0], 0))
		gotWeights = append(gotWeights, it.CurrentWeight())
		for y := 1; y < 5; y++ {
			if core.RowFromSlice(state[0], y) != 0 {
				t.Fatalf("row %d of the candidate preimage should stay zero, got %#x", y, core.RowFromSlice(state[0], y))
			}
		}
		it.Next()
	}

	if len(gotValues) != len(wantValues) {
		t.Fatalf("iterator produced %d candidates, want %d\ngot  %v\nwant %v", len(gotValues), len(wantValues), gotValues, wantValues)
	}
	for i := range wantValues {
		if gotValues[i] != wantValues[i] || gotWeights[i] != wantWeights[i] {
			t.Errorf("candidate %d: got (value %#x, weight %d), want (value %#x, weight %d)",
				i, gotValues[i], gotWeights[i], wantValues[i], wantWeights[i])
		}
	}
	for i := 1; i < len(gotWeights); i++ {
		if gotWeights[i] < gotWeights[i-1] {
			t.Errorf("weights not non-decreasing at index %d: %d then %d", i, gotWeights[i-1], gotWeights[i])
		}
	}
}

// TestReverseStateIteratorEmptyState checks that an all-zero target (nothing to invert) reports
// IsEmpty immediately.
func TestReverseStateIteratorEmptyState(t *testing.T) {
	ctx := newContext(t, 25, DC)
	target := []core.SliceValue{0}
	it := ctx.GetReverseStateIterator(target, 100)
	if !it.IsEmpty() {
		t.Fatalf("an all-zero target state has no rows to invert, IsEmpty() should be true")
	}
}

// TestIsChiCompatibleStateAgreesWithDirectList checks that IsChiCompatibleState accepts exactly
// the after-chi states reachable through DirectList from a before-chi state's active rows.
func TestIsChiCompatibleStateAgreesWithDirectList(t *testing.T) {
	ctx := newContext(t, 25, DC)
	before := []core.SliceValue{core.SliceFromRow(3, 0)} // active row 3 at y=0
	row := core.RowFromSlice(before[0], 0)

	for _, v := range ctx.DirectList[row].Values() {
		after := []core.SliceValue{core.SliceFromRow(v, 0)}
		if !ctx.IsChiCompatibleState(before, after) {
			t.Errorf("row pattern %#x listed in DirectList[%#x] should be chi-compatible", v, row)
		}
	}

	// An output value not in the list should be rejected, unless every possible output happens to
	// be reachable (not the case for chi, which is not surjective-by-row in general terms of weight).
	reachable := make(map[core.RowValue]bool)
	for _, v := range ctx.DirectList[row].Values() {
		reachable[v] = true
	}
	for v := core.RowValue(0); v < 32; v++ {
		if reachable[v] {
			continue
		}
		after := []core.SliceValue{core.SliceFromRow(v, 0)}
		if ctx.IsChiCompatibleState(before, after) {
			t.Errorf("row pattern %#x is not listed in DirectList[%#x] but was accepted as chi-compatible", v, row)
		}
	}
}
