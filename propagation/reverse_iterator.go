package propagation

import "github.com/kecclab/trails/core"

// ReverseStateIterator enumerates the χ-preimages of a state, one row-pattern choice at a time,
// visiting each candidate within the configured budget exactly once and stopping once the minimum
// achievable weight would exceed that budget (spec §4.6). Candidates come in odometer order, the
// first active row varying fastest: the weights are non-decreasing when the target has a single
// active row, but with several active rows the sequence is not sorted by weight. It holds, for each active row
// of the target state, the sorted reverse-direction pattern list, a current choice index into that
// list, and the running weight those choices sum to; [Next] implements the "odometer with budget"
// update described in spec §4.6.
type ReverseStateIterator struct {
	current    []core.SliceValue
	patterns   []*patternsAtPosition
	maxWeight  int
	minWeight  int
	currentWeight int
	index      uint64
	end        bool
}

type patternsAtPosition struct {
	y, z     int
	values   []core.RowValue
	weights  []int
	minWeight int
	idx      int
}

func newReverseStateIterator(c *Context, stateAfterChi []core.SliceValue, maxWeight int) *ReverseStateIterator {
	it := &ReverseStateIterator{
		current:   make([]core.SliceValue, len(stateAfterChi)),
		maxWeight: maxWeight,
	}
	for z, slice := range stateAfterChi {
		for y := 0; y < 5; y++ {
			row := core.RowFromSlice(slice, y)
			if row == 0 {
				continue
			}
			list := c.ReverseList[row]
			p := &patternsAtPosition{
				y: y, z: z,
				values:    list.Values(),
				minWeight: list.MinWeight,
			}
			for _, pat := range list.Patterns {
				p.weights = append(p.weights, pat.Weight)
			}
			it.patterns = append(it.patterns, p)
			it.current = setRowInSlices(it.current, p.values[0], y, z)
			it.minWeight += p.weights[0]
		}
	}
	it.currentWeight = it.minWeight
	it.end = it.IsEmpty()
	return it
}

func setRowInSlices(state []core.SliceValue, row core.RowValue, y, z int) []core.SliceValue {
	state[z] = (state[z] &^ (core.SliceValue(0x1F) << uint(5*y))) | (core.SliceValue(row) << uint(5*y))
	return state
}

// IsEnd reports whether every candidate up to the weight budget has been visited.
func (it *ReverseStateIterator) IsEnd() bool { return it.end }

// IsEmpty reports whether even the lightest combination of row choices exceeds the budget, or the
// target state was all-zero (no rows to invert).
func (it *ReverseStateIterator) IsEmpty() bool {
	return it.minWeight > it.maxWeight || len(it.patterns) == 0
}

// Value returns the current candidate preimage (owned by the iterator).
func (it *ReverseStateIterator) Value() []core.SliceValue { return it.current }

// CurrentWeight returns the propagation weight of the current candidate.
func (it *ReverseStateIterator) CurrentWeight() int { return it.currentWeight }

// Index returns the 0-based position of the current candidate in visitation order.
func (it *ReverseStateIterator) Index() uint64 { return it.index }

// Next advances to the next candidate, in odometer order (see [ReverseStateIterator]).
func (it *ReverseStateIterator) Next() {
	it.next()
	it.index++
}

func (it *ReverseStateIterator) next() {
	affordable := it.maxWeight - it.currentWeight
	i := 0
	for i < len(it.patterns) {
		p := it.patterns[i]
		ii := p.idx
		affordable += p.weights[ii]
		it.currentWeight -= p.weights[ii]
		if ii < len(p.values)-1 && p.weights[ii+1] <= affordable {
			break
		}
		affordable -= p.minWeight
		i++
	}
	if i >= len(it.patterns) {
		it.end = true
		return
	}
	p := it.patterns[i]
	p.idx++
	it.currentWeight += p.weights[p.idx]
	it.current = setRowInSlices(it.current, p.values[p.idx], p.y, p.z)
	for j := 0; j < i; j++ {
		pj := it.patterns[j]
		pj.idx = 0
		it.currentWeight += pj.weights[0]
		it.current = setRowInSlices(it.current, pj.values[0], pj.y, pj.z)
	}
}
