package keccakf_test

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/kecclab/trails/core"
	"github.com/kecclab/trails/internal/testdata"
	"github.com/kecclab/trails/keccakf"
)

var widths = []int{25, 50, 100, 200, 400, 800, 1600}

func TestForwardInverseRoundTrip(t *testing.T) {
	drbg := testdata.New("keccakf round-trip")
	for _, w := range widths {
		t.Run(fmt.Sprintf("w=%d", w), func(t *testing.T) {
			k, err := keccakf.New(w)
			if err != nil {
				t.Fatalf("New(%d): %v", w, err)
			}

			laneSize := w / 25
			in := make([]byte, (25*laneSize+7)/8)
			copy(in, drbg.Data(len(in)))

			lanes := k.FromBytesToLanes(in)
			orig := append([]core.LaneValue(nil), lanes...)

			k.Forward(lanes)
			k.Inverse(lanes)
			for i := range lanes {
				if lanes[i] != orig[i] {
					t.Fatalf("Inverse(Forward(s)) != s at lane %d: got %x, want %x", i, lanes[i], orig[i])
				}
			}

			k.Inverse(lanes)
			k.Forward(lanes)
			for i := range lanes {
				if lanes[i] != orig[i] {
					t.Fatalf("Forward(Inverse(s)) != s at lane %d: got %x, want %x", i, lanes[i], orig[i])
				}
			}
		})
	}
}

func TestSubMapRoundTrips(t *testing.T) {
	drbg := testdata.New("keccakf submap round-trip")
	for _, w := range widths {
		t.Run(fmt.Sprintf("w=%d", w), func(t *testing.T) {
			k, err := keccakf.New(w)
			if err != nil {
				t.Fatalf("New(%d): %v", w, err)
			}
			laneSize := w / 25
			in := make([]byte, (25*laneSize+7)/8)
			copy(in, drbg.Data(len(in)))
			lanes := k.FromBytesToLanes(in)
			orig := append([]core.LaneValue(nil), lanes...)

			submaps := []struct {
				name         string
				fwd, inverse func([]core.LaneValue)
			}{
				{"theta", k.Theta, k.InverseTheta},
				{"rho", k.Rho, k.InverseRho},
				{"pi", k.Pi, k.InversePi},
				{"chi", k.Chi, k.InverseChi},
			}
			for _, sm := range submaps {
				v := append([]core.LaneValue(nil), orig...)
				sm.fwd(v)
				sm.inverse(v)
				for i := range v {
					if v[i] != orig[i] {
						t.Errorf("%s: inverse(fwd(s)) != s at lane %d", sm.name, i)
					}
				}
			}
		})
	}
}

func TestRhoOffsets(t *testing.T) {
	for _, w := range widths {
		k, err := keccakf.New(w)
		if err != nil {
			t.Fatal(err)
		}
		laneSize := w / 25

		got := map[int]bool{}
		x, y := 1, 0
		for tt := 0; tt < 24; tt++ {
			off := k.RhoOffset(x, y)
			want := ((tt + 1) * (tt + 2) / 2) % laneSize
			if off != want {
				t.Errorf("w=%d: RhoOffset(%d,%d) = %d, want %d", w, x, y, off, want)
			}
			got[off] = true
			nx := core.IndexX(y)
			ny := core.IndexX(2*x + 3*y)
			x, y = nx, ny
		}
		if k.RhoOffset(0, 0) != 0 {
			t.Errorf("w=%d: RhoOffset(0,0) = %d, want 0", w, k.RhoOffset(0, 0))
		}
	}
}

func TestRoundConstants_w64(t *testing.T) {
	k, err := keccakf.New(1600)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{
		0x0000000000000001, 0x0000000000008082, 0x800000000000808A, 0x8000000080008000,
		0x000000000000808B, 0x0000000080000001, 0x8000000080008081, 0x8000000000008009,
		0x000000000000008A, 0x0000000000000088, 0x0000000080008009, 0x000000008000000A,
	}
	for i, w := range want {
		if got := uint64(k.RoundConstant(i)); got != w {
			t.Errorf("RoundConstant(%d) = %016x, want %016x", i, got, w)
		}
	}
}

func TestNames(t *testing.T) {
	k, err := keccakf.New(1600)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := k.GetDescription(), "Keccak-f[1600]"; got != want {
		t.Errorf("GetDescription() = %q, want %q", got, want)
	}
	if got, want := k.GetName(), "KeccakF-1600-24"; got != want {
		t.Errorf("GetName() = %q, want %q", got, want)
	}

	p, err := keccakf.NewP(1600, 12)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.GetDescription(), "Keccak-p[1600, 12]"; got != want {
		t.Errorf("GetDescription() = %q, want %q", got, want)
	}
}

func TestInvalidWidth(t *testing.T) {
	if _, err := keccakf.New(123); err == nil {
		t.Error("New(123) succeeded, want InvalidWidth error")
	}
}

// ExampleKeccakF_Forward reproduces S1: Keccak-f[1600] applied to the all-zero state.
func ExampleKeccakF_Forward() {
	k, err := keccakf.New(1600)
	if err != nil {
		panic(err)
	}
	lanes := make([]core.LaneValue, 25)
	k.Forward(lanes)
	out := k.FromLanesToBytes(lanes)
	fmt.Println(hex.EncodeToString(out[:8]))
	// Output: f1258f7a46e5853a
}
