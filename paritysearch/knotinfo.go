package paritysearch

import (
	"fmt"
	"io"

	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/propagation"
)

// KnotInfo classifies one slice value for the three-round kernel trail-core search, packed into a
// single byte per spec §6: bit 0 isOrbital; bits 1-3 nrActiveRows; bits 4-5 knotPointDeficit;
// bits 6-7 knotWeightAtBDeficit.
type KnotInfo byte

// PackKnotInfo builds a KnotInfo byte from its four fields, clamping each to the bit width spec §6
// allots it (nrActiveRows to 3 bits, the two deficits to 2 bits each).
func PackKnotInfo(isOrbital bool, nrActiveRows, knotPointDeficit, knotWeightAtBDeficit int) KnotInfo {
	var b byte
	if isOrbital {
		b |= 1
	}
	b |= byte(min(nrActiveRows, 0x7)) << 1
	b |= byte(min(knotPointDeficit, 0x3)) << 4
	b |= byte(min(knotWeightAtBDeficit, 0x3)) << 6
	return KnotInfo(b)
}

func (k KnotInfo) IsOrbital() bool            { return k&1 != 0 }
func (k KnotInfo) NrActiveRows() int          { return int(k>>1) & 0x7 }
func (k KnotInfo) KnotPointDeficit() int      { return int(k>>4) & 0x3 }
func (k KnotInfo) KnotWeightAtBDeficit() int  { return int(k>>6) & 0x3 }

// ClassifySlice derives a slice's KnotInfo. A slice is a knot when it is active both before and
// after χ is applied to it in isolation (spec glossary "Knot"); the two deficits report, clamped
// to what the packed byte can hold, how many more active points (resp. how much more weight) the
// slice would need to reach a minimal knot of 2 active rows (resp. weight 4) — the two thresholds
// the chain/knot search in Keccak-fTrailCoreParity.cpp prunes against.
func ClassifySlice(ctx *propagation.Context, slice core.SliceValue) KnotInfo {
	nrActiveRows := core.NrActiveRows(slice)

	afterChi := make([]core.SliceValue, 1)
	afterChi[0] = slice
	for y := 0; y < 5; y++ {
		row := core.RowFromSlice(slice, y)
		// Any compatible output works for classification purposes: use the lowest-weight one,
		// the first generator-free element of the input row's compatible affine space.
		afterChi[0] = setRow(afterChi[0], y, ctx.AffinePerInput[row].Offset)
	}
	isOrbital := nrActiveRows > 0 && core.NrActiveRows(afterChi[0]) > 0

	pointDeficit := 2 - nrActiveRows
	if pointDeficit < 0 {
		pointDeficit = 0
	}
	weight := ctx.GetWeight(slice)
	weightDeficit := 4 - weight
	if weightDeficit < 0 {
		weightDeficit = 0
	}
	return PackKnotInfo(isOrbital, nrActiveRows, pointDeficit, weightDeficit)
}

func setRow(slice core.SliceValue, y int, row core.RowValue) core.SliceValue {
	rows := [5]core.RowValue{}
	for yy := 0; yy < 5; yy++ {
		rows[yy] = core.RowFromSlice(slice, yy)
	}
	rows[y] = row
	return core.SliceFromRows(rows)
}

// KnotInfoTable is a cache of ClassifySlice results, one byte per possible slice value, built
// lazily and persisted to a file named per spec §6.
type KnotInfoTable struct {
	entries []KnotInfo
}

// BuildKnotInfoTable classifies every slice value (core.MaxSliceValue+1 entries, ~32MiB).
func BuildKnotInfoTable(ctx *propagation.Context) *KnotInfoTable {
	t := &KnotInfoTable{entries: make([]KnotInfo, int(core.MaxSliceValue)+1)}
	for v := core.SliceValue(0); v <= core.MaxSliceValue; v++ {
		t.entries[v] = ClassifySlice(ctx, v)
	}
	return t
}

func (t *KnotInfoTable) Get(slice core.SliceValue) KnotInfo { return t.entries[slice] }

// FileName builds the cache filename per spec §6: "KnotInfo<DC|LC><instance-name>.cache".
func FileName(mode propagation.Mode, instanceName string) string {
	return fmt.Sprintf("KnotInfo%s%s.cache", mode, instanceName)
}

// Save writes one byte per slice value, in slice-value order.
func (t *KnotInfoTable) Save(w io.Writer) error {
	buf := make([]byte, len(t.entries))
	for i, e := range t.entries {
		buf[i] = byte(e)
	}
	_, err := w.Write(buf)
	return err
}

// LoadKnotInfoTable reads a cache written by Save; a short or missing file is the caller's cue to
// rebuild with BuildKnotInfoTable and Save again.
func LoadKnotInfoTable(r io.Reader) (*KnotInfoTable, error) {
	buf := make([]byte, int(core.MaxSliceValue)+1)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, err
	}
	t := &KnotInfoTable{entries: make([]KnotInfo, n)}
	for i, b := range buf[:n] {
		t.entries[i] = KnotInfo(b)
	}
	return t, nil
}
