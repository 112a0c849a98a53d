// Package paritysearch implements parity-directed trail-core search (spec §4.8): enumerating
// low-weight column parities by walking the "runs" of odd columns along the skew line
// x = 3t mod 5 (DC) or x = 2t mod 5 (LC), pruning with three successively tighter lower bounds on
// the trail weight each parity can yield, then building two- and three-round trail cores on top of
// the surviving parities.
package paritysearch

import (
	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/propagation"
)

// columnPos names a column of the state by its x coordinate and z coordinate.
type columnPos struct {
	x, z int
}

// getXandZfromT maps a position t along the skew line back to (x, z). The line's slope is
// mode-dependent: DC walks x = 3t mod 5, LC walks x = 2t mod 5 (its modular inverse), so that
// translateAlongXinT's "shift x by one, keep z fixed" step is a constant stride in t for both.
func getXandZfromT(ctx *propagation.Context, t int) (x, z int) {
	w := ctx.LaneSize()
	tm := t % (5 * w)
	if tm < 0 {
		tm += 5 * w
	}
	if ctx.Mode() == propagation.DC {
		return core.IndexX(3 * tm), tm % w
	}
	z = ((5 * w) - tm) % w
	return core.IndexX(2 * tm), z
}

// translateAlongXinT returns the t reached by moving one column over in x while holding z fixed.
// The stride depends only on the lane size: it is the unique dt < 5*laneSize with dt == 2 (mod 5) and
// dt == 0 (mod laneSize), found in the reference implementation's table for each supported width.
func translateAlongXinT(ctx *propagation.Context, t int) int {
	w := ctx.LaneSize()
	var dt int
	switch w {
	case 1, 2:
		dt = 2
	case 4:
		dt = 12
	case 8, 16, 32:
		dt = 32
	case 64:
		dt = 192
	default:
		dt = 2
	}
	return (t + dt) % (5 * w)
}

// directRhoPi and reverseRhoPi carry a bit's (x, y, z) coordinates through ρ then π, or through
// their inverses, independent of any particular lane value — used to locate which rows a given
// bit position feeds on the other side of θ.
func directRhoPi(ctx *propagation.Context, x, y, z int) (int, int, int) {
	w := ctx.LaneSize()
	if ctx.Mode() == propagation.DC {
		z2 := mod(z+ctx.KeccakF().RhoOffset(x, y), w)
		return core.IndexX(y), core.IndexX(2*x + 3*y), z2
	}
	x2, y2 := core.IndexX(x+3*y), x
	z2 := mod(z-ctx.KeccakF().RhoOffset(x2, y2), w)
	return x2, y2, z2
}

func reverseRhoPi(ctx *propagation.Context, x, y, z int) (int, int, int) {
	w := ctx.LaneSize()
	if ctx.Mode() == propagation.DC {
		x2, y2 := core.IndexX(x+3*y), x
		z2 := mod(z-ctx.KeccakF().RhoOffset(x2, y2), w)
		return x2, y2, z2
	}
	z2 := mod(z+ctx.KeccakF().RhoOffset(x, y), w)
	return core.IndexX(y), core.IndexX(2*x + 3*y), z2
}

// reverseRhoPiBeforeTheta and directRhoPiAfterTheta apply the coordinate transform only on the
// side of θ where this propagation context's direct λ actually places ρ and π: DC's λ is
// π∘ρ∘θ, so ρπ sits after θ; LC's λ is θᵀ∘ρ⁻¹∘π⁻¹ (transpose mode), so the inverse sits before θ.
func reverseRhoPiBeforeTheta(ctx *propagation.Context, x, y, z int) (int, int, int) {
	if ctx.Mode() == propagation.LC {
		return reverseRhoPi(ctx, x, y, z)
	}
	return x, y, z
}

func directRhoPiAfterTheta(ctx *propagation.Context, x, y, z int) (int, int, int) {
	if ctx.Mode() == propagation.DC {
		return directRhoPi(ctx, x, y, z)
	}
	return x, y, z
}

func mod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

// lowerBoundActiveRows counts a minimum number of active rows needed to explain the given affected
// columns (ac) and unaffected-odd columns (uoc), reusing a single active row to cover both a
// "left" (pre-θ) and a "right" (post-θ) requirement whenever the two requirements land on rows
// that haven't already been spent.
func lowerBoundActiveRows(ctx *propagation.Context, ac, uoc []columnPos) int {
	w := ctx.LaneSize()
	takenLeft := make([][]bool, 5)
	takenRight := make([][]bool, 5)
	for y := range takenLeft {
		takenLeft[y] = make([]bool, w)
		takenRight[y] = make([]bool, w)
	}

	activeRows := 0
	for _, c := range ac {
		for y := 0; y < 5; y++ {
			_, ly, lz := reverseRhoPiBeforeTheta(ctx, c.x, y, c.z)
			_, ry, rz := directRhoPiAfterTheta(ctx, c.x, y, c.z)
			if !takenLeft[ly][lz] && !takenRight[ry][rz] {
				activeRows++
				takenLeft[ly][lz] = true
				takenRight[ry][rz] = true
			}
		}
	}
	for _, c := range uoc {
		anyLeft, anyRight := false, false
		for y := 0; y < 5; y++ {
			_, ly, lz := reverseRhoPiBeforeTheta(ctx, c.x, y, c.z)
			_, ry, rz := directRhoPiAfterTheta(ctx, c.x, y, c.z)
			anyLeft = anyLeft || takenLeft[ly][lz]
			anyRight = anyRight || takenRight[ry][rz]
			takenLeft[ly][lz] = true
			takenRight[ry][rz] = true
		}
		if !anyLeft {
			activeRows++
		}
		if !anyRight {
			activeRows++
		}
	}
	return activeRows
}

// classifyColumns splits every column into affected (d bit set) and unaffected-odd (c bit set,
// d bit clear) columns, the same two classes Keccak-fTrailCoreParity.cpp's constructor builds
// Acolumns/UOcolumns from.
func classifyColumns(ctx *propagation.Context, c, d []core.RowValue) (ac, uoc []columnPos) {
	w := ctx.LaneSize()
	for z := 0; z < w; z++ {
		for x := 0; x < 5; x++ {
			odd := c[z]&(1<<uint(x)) != 0
			affected := d[z]&(1<<uint(x)) != 0
			switch {
			case affected:
				ac = append(ac, columnPos{x, z})
			case odd:
				uoc = append(uoc, columnPos{x, z})
			}
		}
	}
	return ac, uoc
}

// GetLowerBoundTotalActiveRows returns a lower bound on the number of active rows needed to
// realize a column parity C with θ-effect D, derived from C and D's affected and unaffected-odd
// columns alone.
func GetLowerBoundTotalActiveRows(ctx *propagation.Context, c, d []core.RowValue) int {
	ac, uoc := classifyColumns(ctx, c, d)
	return lowerBoundActiveRows(ctx, ac, uoc)
}

// Run is a maximal contiguous span of odd columns along the t-line, [TStart, TStart+Length).
type Run struct {
	TStart, Length int
}

// ParityAsRuns represents a column parity as the runs of consecutive odd columns along the t-line,
// the natural search unit: a run's two ends are the only columns θ can spread activity from.
type ParityAsRuns struct {
	Runs []Run
}

// ToParityAndParityEffect expands the runs into the state-shaped parity vector C and its θ-effect
// D, reusing the already-grounded propagation.Context.ThetaEffect rather than re-deriving it from
// run endpoints.
func (p ParityAsRuns) ToParityAndParityEffect(ctx *propagation.Context) (c, d []core.RowValue) {
	w := ctx.LaneSize()
	c = make([]core.RowValue, w)
	for _, run := range p.Runs {
		for i := 0; i < run.Length; i++ {
			x, z := getXandZfromT(ctx, run.TStart+i)
			c[z] |= 1 << uint(x)
		}
	}
	d = ctx.ThetaEffect(c)
	return c, d
}

// endpoints returns the affected columns contributed by each run's two ends.
func (p ParityAsRuns) endpoints(ctx *propagation.Context) []columnPos {
	ac := make([]columnPos, 0, 2*len(p.Runs))
	for _, run := range p.Runs {
		xs, zs := getXandZfromT(ctx, run.TStart)
		xe, ze := getXandZfromT(ctx, run.TStart+run.Length-1)
		ac = append(ac, columnPos{xs, zs}, columnPos{xe, ze})
	}
	return ac
}

// GetLowerBoundTotalHammingWeight returns the reference bound of 10 per affected column (each
// run's two ends) plus 2 per unaffected odd column (every other column in a run's interior).
func (p ParityAsRuns) GetLowerBoundTotalHammingWeight(ctx *propagation.Context) int {
	w := ctx.LaneSize()
	endpointT := make(map[int]bool, 2*len(p.Runs))
	for _, run := range p.Runs {
		endpointT[mod(run.TStart, 5*w)] = true
		endpointT[mod(run.TStart+run.Length-1, 5*w)] = true
	}
	total := 10 * 2 * len(p.Runs)
	for _, run := range p.Runs {
		for i := 0; i < run.Length; i++ {
			t := mod(run.TStart+i, 5*w)
			if !endpointT[t] {
				total += 2
			}
		}
	}
	return total
}

// GetLowerBoundTotalActiveRowsUsingOnlyAC bounds active rows using only the affected columns at
// each run's two ends, ignoring unaffected odd columns in the interior.
func (p ParityAsRuns) GetLowerBoundTotalActiveRowsUsingOnlyAC(ctx *propagation.Context) int {
	return lowerBoundActiveRows(ctx, p.endpoints(ctx), nil)
}

// GetLowerBoundTotalActiveRows extends the AC-only bound with the unaffected odd columns in each
// run's interior.
func (p ParityAsRuns) GetLowerBoundTotalActiveRows(ctx *propagation.Context) int {
	w := ctx.LaneSize()
	ac := p.endpoints(ctx)
	endpointT := make(map[int]bool, len(ac))
	for _, run := range p.Runs {
		endpointT[mod(run.TStart, 5*w)] = true
		endpointT[mod(run.TStart+run.Length-1, 5*w)] = true
	}
	var uoc []columnPos
	for _, run := range p.Runs {
		for i := 0; i < run.Length; i++ {
			t := mod(run.TStart+i, 5*w)
			if endpointT[t] {
				continue
			}
			x, z := getXandZfromT(ctx, t)
			uoc = append(uoc, columnPos{x, z})
		}
	}
	return lowerBoundActiveRows(ctx, ac, uoc)
}

// GetBoundOfTotalWeightGivenTotalHammingWeight turns a Hamming-weight bound into a trail-weight
// bound via the same closed-form estimate used elsewhere in this module.
func GetBoundOfTotalWeightGivenTotalHammingWeight(ctx *propagation.Context, totalHammingWeight int) int {
	return ctx.GetLowerBoundOnWeightGivenHammingWeight(totalHammingWeight)
}

// Found reports one parity surviving the search, already expanded to C and D.
type Found struct {
	Runs ParityAsRuns
	C, D []core.RowValue
}

// LookForRunsBelowTargetWeight searches all column parities expressible as runs along the t-line
// whose three lower bounds (Hamming weight, AC-only active rows, AC-and-UOC active rows) each stay
// at or below targetWeight, and returns the survivors. It places one run at a time, trying every
// length and every start position after the previous run, and prunes a branch as soon as any of
// the three bounds for the runs placed so far exceeds targetWeight.
func LookForRunsBelowTargetWeight(ctx *propagation.Context, targetWeight int) []Found {
	w := ctx.LaneSize()
	var results []Found
	var walk func(runs []Run, afterT int)
	walk = func(runs []Run, afterT int) {
		if len(runs) > 0 {
			p := ParityAsRuns{Runs: append([]Run(nil), runs...)}
			if GetBoundOfTotalWeightGivenTotalHammingWeight(ctx, p.GetLowerBoundTotalHammingWeight(ctx)) > targetWeight {
				return
			}
			if p.GetLowerBoundTotalActiveRowsUsingOnlyAC(ctx) > targetWeight {
				return
			}
			if p.GetLowerBoundTotalActiveRows(ctx) > targetWeight {
				return
			}
			c, d := p.ToParityAndParityEffect(ctx)
			results = append(results, Found{Runs: p, C: c, D: d})
		}
		for length := 1; length <= 5*w; length++ {
			for tStart := afterT; tStart < afterT+5*w; tStart++ {
				next := append(append([]Run(nil), runs...), Run{TStart: tStart, Length: length})
				walk(next, tStart+length)
			}
		}
	}

	for tStart := 0; tStart < 5; tStart++ {
		for length := 1; length <= 5*w; length++ {
			walk([]Run{{TStart: tStart, Length: length}}, tStart+length)
		}
	}
	return results
}
