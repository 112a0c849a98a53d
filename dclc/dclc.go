// Package dclc computes the per-row differential and linear cryptanalysis tables for χ and its
// inverse, and the λ lookup tables that let package propagation evaluate the linear steps between
// two χ layers in any of the four [LambdaMode]s by table lookup rather than by running the
// permutation sub-maps directly.
package dclc

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/keccakf"
)

// RowPattern is one compatible output row paired with its propagation weight.
type RowPattern struct {
	Value  core.RowValue
	Weight int
}

// ListOfRowPatterns lists, for a given input row, every compatible output row pattern and its
// propagation weight, kept sorted by ascending weight.
type ListOfRowPatterns struct {
	Patterns         []RowPattern
	MinWeight        int
	MaxWeight        int
	minMaxInitialized bool
}

// Add inserts value at the position that keeps Patterns sorted by ascending weight.
func (l *ListOfRowPatterns) Add(value core.RowValue, weight int) {
	i := 0
	for i < len(l.Patterns) && l.Patterns[i].Weight <= weight {
		i++
	}
	l.Patterns = append(l.Patterns, RowPattern{})
	copy(l.Patterns[i+1:], l.Patterns[i:])
	l.Patterns[i] = RowPattern{Value: value, Weight: weight}

	if !l.minMaxInitialized || weight > l.MaxWeight {
		l.MaxWeight = weight
	}
	if !l.minMaxInitialized || weight < l.MinWeight {
		l.MinWeight = weight
	}
	l.minMaxInitialized = true
}

// Values returns just the output row values, in the same ascending-weight order as Patterns.
func (l *ListOfRowPatterns) Values() []core.RowValue {
	out := make([]core.RowValue, len(l.Patterns))
	for i, p := range l.Patterns {
		out[i] = p.Value
	}
	return out
}

// LambdaMode selects one of the four linear-step variants between two χ layers (spec §3).
type LambdaMode int

const (
	// Straight is π∘ρ∘θ.
	Straight LambdaMode = iota
	// Inverse is θ⁻¹∘ρ⁻¹∘π⁻¹.
	Inverse
	// Transpose is θᵀ∘ρ⁻¹∘π⁻¹.
	Transpose
	// Dual is π∘ρ∘θ⁻ᵀ.
	Dual
	// NrLambdaModes is the number of LambdaMode values.
	NrLambdaModes
)

// ThetaJustAfterChi reports whether mode's before-θ part is the identity (Straight, Dual).
func ThetaJustAfterChi(mode LambdaMode) bool {
	return mode == Straight || mode == Dual
}

// ThetaJustBeforeChi reports whether mode's after-θ part is the identity (Inverse, Transpose).
func ThetaJustBeforeChi(mode LambdaMode) bool {
	return mode == Inverse || mode == Transpose
}

// DCLC holds, for a given Keccak-f instance, the four per-row pattern tables (differential and
// correlation, forward and inverse through χ) and the λ lookup tables used to evaluate any of the
// four LambdaModes by table lookup.
type DCLC struct {
	k *keccakf.KeccakF

	DiffChi    [32]ListOfRowPatterns
	DiffInvChi [32]ListOfRowPatterns
	CorrChi    [32]ListOfRowPatterns
	CorrInvChi [32]ListOfRowPatterns

	// lambdaRowToSlice[mode][outputSlice][inputSlice][y][row] = the output slice contribution.
	lambdaRowToSlice           [NrLambdaModes][][][5][32]core.SliceValue
	lambdaBeforeThetaRowToSlice [NrLambdaModes][][][5][32]core.SliceValue
	lambdaAfterThetaRowToSlice  [NrLambdaModes][][][5][32]core.SliceValue
}

// New builds the DC/LC tables for k, running the full O(32*32) per-row brute force plus the
// O(laneSize^2 * 5 * 32) per-mode λ table construction described in spec §4.2. There is no
// persisted-cache fast path here; Straight-mode caching (the expensive one, per spec §4.2) is the
// job of [LoadOrBuild], which wraps this constructor with the binary cache file format of §6.
func New(k *keccakf.KeccakF) *DCLC {
	d := &DCLC{k: k}
	d.initChiTables()
	d.initLambdaTables(Straight)
	d.initLambdaTables(Inverse)
	d.initLambdaTables(Transpose)
	d.initLambdaTables(Dual)
	return d
}

func chiOnRow(a core.RowValue) core.RowValue {
	var out core.RowValue
	for x := 0; x < 5; x++ {
		bx := (a >> uint(x)) & 1
		bx1 := (a >> uint(core.IndexX(x+1))) & 1
		bx2 := (a >> uint(core.IndexX(x+2))) & 1
		bit := bx ^ ((^bx1) & bx2 & 1)
		out |= (bit & 1) << uint(x)
	}
	return out
}

var inverseChiTable = func() [32]core.RowValue {
	var t [32]core.RowValue
	for a := core.RowValue(0); a < 32; a++ {
		t[chiOnRow(a)] = a
	}
	return t
}()

func inverseChiOnRow(a core.RowValue) core.RowValue { return inverseChiTable[a] }

func dotProduct(a, b core.RowValue) int {
	v := a & b
	r := 0
	for v != 0 {
		r ^= int(v & 1)
		v >>= 1
	}
	return r
}

func computeDifferentialWeight(count int) int {
	return int(math.Floor(5-math.Log2(math.Abs(float64(count)))+0.5))
}

func computeLinearWeight(correl int) int {
	return 2 * int(math.Floor(5-math.Log2(math.Abs(float64(correl)))+0.5))
}

func (d *DCLC) initChiTables() {
	for da := core.RowValue(0); da < 32; da++ {
		var count [32]int
		for a := core.RowValue(0); a < 32; a++ {
			db := chiOnRow(a) ^ chiOnRow(a^da)
			count[db]++
		}
		for db := core.RowValue(0); db < 32; db++ {
			if count[db] != 0 {
				d.DiffChi[da].Add(db, computeDifferentialWeight(count[db]))
			}
		}
	}
	for da := core.RowValue(0); da < 32; da++ {
		var count [32]int
		for a := core.RowValue(0); a < 32; a++ {
			db := inverseChiOnRow(a) ^ inverseChiOnRow(a^da)
			count[db]++
		}
		for db := core.RowValue(0); db < 32; db++ {
			if count[db] != 0 {
				d.DiffInvChi[da].Add(db, computeDifferentialWeight(count[db]))
			}
		}
	}
	for ua := core.RowValue(0); ua < 32; ua++ {
		var correl [32]int
		for ub := core.RowValue(0); ub < 32; ub++ {
			var count [2]int
			for a := core.RowValue(0); a < 32; a++ {
				b := chiOnRow(a)
				count[dotProduct(a, ua)^dotProduct(b, ub)]++
			}
			correl[ub] = count[0] - count[1]
		}
		for ub := core.RowValue(0); ub < 32; ub++ {
			if correl[ub] != 0 {
				d.CorrChi[ua].Add(ub, computeLinearWeight(correl[ub]))
			}
		}
	}
	for ua := core.RowValue(0); ua < 32; ua++ {
		var correl [32]int
		for ub := core.RowValue(0); ub < 32; ub++ {
			var count [2]int
			for a := core.RowValue(0); a < 32; a++ {
				b := inverseChiOnRow(a)
				count[dotProduct(a, ua)^dotProduct(b, ub)]++
			}
			correl[ub] = count[0] - count[1]
		}
		for ub := core.RowValue(0); ub < 32; ub++ {
			if correl[ub] != 0 {
				d.CorrInvChi[ua].Add(ub, computeLinearWeight(correl[ub]))
			}
		}
	}
}

// applyLambda runs the actual permutation sub-maps for mode over a 25-lane state, used only while
// building the lookup tables (never at lookup time).
func (d *DCLC) applyLambda(lanes []core.LaneValue, mode LambdaMode) {
	k := d.k
	switch mode {
	case Straight:
		k.Theta(lanes)
		k.Rho(lanes)
		k.Pi(lanes)
	case Inverse:
		k.InversePi(lanes)
		k.InverseRho(lanes)
		k.InverseTheta(lanes)
	case Transpose:
		k.InversePi(lanes)
		k.InverseRho(lanes)
		d.thetaTransposed(lanes)
	case Dual:
		d.thetaTransEnvelope(lanes)
		k.InverseTheta(lanes)
		d.thetaTransEnvelope(lanes)
		k.Rho(lanes)
		k.Pi(lanes)
	}
}

func (d *DCLC) applyLambdaBeforeTheta(lanes []core.LaneValue, mode LambdaMode) {
	if mode == Transpose || mode == Inverse {
		d.k.InversePi(lanes)
		d.k.InverseRho(lanes)
	}
}

func (d *DCLC) applyLambdaAfterTheta(lanes []core.LaneValue, mode LambdaMode) {
	if mode == Straight || mode == Dual {
		d.k.Rho(lanes)
		d.k.Pi(lanes)
	}
}

// thetaTransposed applies θᵀ: like θ but with the rotation on the other side, D_x = rot(C_{x-1},
// -1) xor C_{x+1}.
func (d *DCLC) thetaTransposed(lanes []core.LaneValue) {
	var c [5]core.LaneValue
	for x := 0; x < 5; x++ {
		var p core.LaneValue
		for y := 0; y < 5; y++ {
			p ^= lanes[core.Index(x, y)]
		}
		c[x] = p
	}
	var dd [5]core.LaneValue
	for x := 0; x < 5; x++ {
		dd[x] = d.k.Rol(c[core.IndexX(x-1)], -1) ^ c[core.IndexX(x+1)]
	}
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			lanes[core.Index(x, y)] ^= dd[x]
		}
	}
}

// thetaTransEnvelope reverses the order of bits within each lane and of lanes within each plane,
// which conjugates θ into θ⁻ᵀ (per the original's use of this envelope around InverseTheta to
// build the Dual mode, Keccak-fDCLC.cpp).
func (d *DCLC) thetaTransEnvelope(lanes []core.LaneValue) {
	w := d.k.LaneSize()
	for i := range lanes {
		lanes[i] = reverseBits(lanes[i], w)
	}
	var out [25]core.LaneValue
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			out[core.Index(core.IndexX(-x), core.IndexX(-y))] = lanes[core.Index(x, y)]
		}
	}
	copy(lanes, out[:])
}

func reverseBits(v core.LaneValue, w int) core.LaneValue {
	var out core.LaneValue
	for i := 0; i < w; i++ {
		if (v>>uint(i))&1 != 0 {
			out |= 1 << uint(w-1-i)
		}
	}
	return out
}

func (d *DCLC) initLambdaTables(mode LambdaMode) {
	w := d.k.LaneSize()
	full := make([][][5][32]core.SliceValue, w)
	before := make([][][5][32]core.SliceValue, w)
	after := make([][][5][32]core.SliceValue, w)
	for oz := range full {
		full[oz] = make([][5][32]core.SliceValue, w)
		before[oz] = make([][5][32]core.SliceValue, w)
		after[oz] = make([][5][32]core.SliceValue, w)
	}

	for iz := 0; iz < w; iz++ {
		for y := 0; y < 5; y++ {
			for row := core.RowValue(0); row < 32; row++ {
				lanes := make([]core.LaneValue, 25)
				core.SetRow(lanes, row, y, iz)
				d.applyLambda(lanes, mode)
				slices := core.FromLanesToSlices(lanes, w)
				for oz := 0; oz < w; oz++ {
					full[oz][iz][y][row] = slices[oz]
				}

				lanes2 := make([]core.LaneValue, 25)
				core.SetRow(lanes2, row, y, iz)
				d.applyLambdaBeforeTheta(lanes2, mode)
				slices2 := core.FromLanesToSlices(lanes2, w)
				for oz := 0; oz < w; oz++ {
					before[oz][iz][y][row] = slices2[oz]
				}

				lanes3 := make([]core.LaneValue, 25)
				core.SetRow(lanes3, row, y, iz)
				d.applyLambdaAfterTheta(lanes3, mode)
				slices3 := core.FromLanesToSlices(lanes3, w)
				for oz := 0; oz < w; oz++ {
					after[oz][iz][y][row] = slices3[oz]
				}
			}
		}
	}
	d.lambdaRowToSlice[mode] = full
	d.lambdaBeforeThetaRowToSlice[mode] = before
	d.lambdaAfterThetaRowToSlice[mode] = after
}

// Lambda evaluates λ in the given mode over a state given as laneSize slices, via table lookup.
func (d *DCLC) Lambda(in []core.SliceValue, mode LambdaMode) []core.SliceValue {
	w := d.k.LaneSize()
	out := make([]core.SliceValue, w)
	table := d.lambdaRowToSlice[mode]
	for iz, s := range in {
		for y := 0; y < 5; y++ {
			row := core.RowFromSlice(s, y)
			for oz := 0; oz < w; oz++ {
				out[oz] ^= table[oz][iz][y][row]
			}
		}
	}
	return out
}

// LambdaBeforeTheta evaluates the before-θ part of λ in mode; the identity when
// ThetaJustAfterChi(mode).
func (d *DCLC) LambdaBeforeTheta(in []core.SliceValue, mode LambdaMode) []core.SliceValue {
	if ThetaJustAfterChi(mode) {
		out := make([]core.SliceValue, len(in))
		copy(out, in)
		return out
	}
	w := d.k.LaneSize()
	out := make([]core.SliceValue, w)
	table := d.lambdaBeforeThetaRowToSlice[mode]
	for iz, s := range in {
		for y := 0; y < 5; y++ {
			row := core.RowFromSlice(s, y)
			for oz := 0; oz < w; oz++ {
				out[oz] ^= table[oz][iz][y][row]
			}
		}
	}
	return out
}

// LambdaAfterTheta evaluates the after-θ part of λ in mode; the identity when
// ThetaJustBeforeChi(mode).
func (d *DCLC) LambdaAfterTheta(in []core.SliceValue, mode LambdaMode) []core.SliceValue {
	if ThetaJustBeforeChi(mode) {
		out := make([]core.SliceValue, len(in))
		copy(out, in)
		return out
	}
	w := d.k.LaneSize()
	out := make([]core.SliceValue, w)
	table := d.lambdaAfterThetaRowToSlice[mode]
	for iz, s := range in {
		for y := 0; y < 5; y++ {
			row := core.RowFromSlice(s, y)
			for oz := 0; oz < w; oz++ {
				out[oz] ^= table[oz][iz][y][row]
			}
		}
	}
	return out
}

// LoadOrBuild loads the Straight-mode λ table from cacheFile (format per spec §6) if present and
// well-formed, otherwise builds the full DCLC instance from scratch and writes the Straight table
// out to cacheFile for next time. The other three modes are always recomputed (spec §4.2: "The
// other modes are recomputed on demand").
func LoadOrBuild(k *keccakf.KeccakF, cacheFile string) (*DCLC, error) {
	if cacheFile == "" {
		return New(k), nil
	}
	d := &DCLC{k: k}
	d.initChiTables()

	if loaded, err := loadStraightCache(k, cacheFile); err == nil {
		d.lambdaRowToSlice[Straight] = loaded
	} else {
		d.initLambdaTables(Straight)
		if werr := saveStraightCache(k, d.lambdaRowToSlice[Straight], cacheFile); werr != nil {
			return nil, &core.Error{Kind: core.CacheIOError, Msg: "writing lambda cache", Err: werr}
		}
	}
	d.initLambdaTables(Inverse)
	d.initLambdaTables(Transpose)
	d.initLambdaTables(Dual)
	return d, nil
}

// loadStraightCache reads the binary λ cache file format of spec §6: for each (outputSlice,
// inputSlice, y, row) quadruple in nesting order, one little-endian uint32 slice value. Since this
// helper only ever loads the Straight mode (the expensive one, per spec §4.2), the mode dimension
// is fixed rather than iterated.
func loadStraightCache(k *keccakf.KeccakF, path string) ([][][5][32]core.SliceValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := k.LaneSize()
	table := make([][][5][32]core.SliceValue, w)
	for oz := range table {
		table[oz] = make([][5][32]core.SliceValue, w)
	}
	buf := make([]byte, 4)
	for oz := 0; oz < w; oz++ {
		for iz := 0; iz < w; iz++ {
			for y := 0; y < 5; y++ {
				for row := 0; row < 32; row++ {
					if _, err := io.ReadFull(f, buf); err != nil {
						return nil, err
					}
					table[oz][iz][y][row] = core.SliceValue(binary.LittleEndian.Uint32(buf))
				}
			}
		}
	}
	return table, nil
}

func saveStraightCache(k *keccakf.KeccakF, table [][][5][32]core.SliceValue, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := k.LaneSize()
	buf := make([]byte, 4)
	for oz := 0; oz < w; oz++ {
		for iz := 0; iz < w; iz++ {
			for y := 0; y < 5; y++ {
				for row := 0; row < 32; row++ {
					binary.LittleEndian.PutUint32(buf, uint32(table[oz][iz][y][row]))
					if _, err := f.Write(buf); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
