// Command trailcheck loads a trail file in the §6 textual format and verifies each trail it
// contains against a propagation context for a stated width and mode, printing the Display
// output for each trail that passes and a FAILED line for each that does not. It is a thin driver over packages trail and propagation; no part of the
// verification logic lives here.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kecclab/trails/dclc"
	"github.com/kecclab/trails/keccakf"
	"github.com/kecclab/trails/propagation"
	"github.com/kecclab/trails/trail"
)

func main() {
	width := flag.Int("width", 1600, "Keccak-f width in bits (25, 50, 100, 200, 400, 800, 1600)")
	mode := flag.String("mode", "DC", "propagation mode: DC or LC")
	path := flag.String("file", "", "trail file to load (§6 format); defaults to stdin")
	flag.Parse()

	var pmode propagation.Mode
	switch *mode {
	case "DC":
		pmode = propagation.DC
	case "LC":
		pmode = propagation.LC
	default:
		log.Fatalf("unknown mode %q: must be DC or LC", *mode)
	}

	k, err := keccakf.New(*width)
	if err != nil {
		log.Fatalf("constructing Keccak-f[%d]: %v", *width, err)
	}
	ctx := propagation.New(k, dclc.New(k), pmode)

	in := os.Stdin
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			log.Fatalf("opening %s: %v", *path, err)
		}
		defer f.Close()
		in = f
	}

	trails, err := trail.LoadAll(in)
	if err != nil {
		log.Fatalf("loading trails: %v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	exitCode := 0
	for i, t := range trails {
		if err := t.Check(ctx); err != nil {
			fmt.Fprintf(out, "trail %d: FAILED: %v\n", i, err)
			exitCode = 1
			continue
		}
		fmt.Fprintf(out, "trail %d: OK (total weight %d, %d rounds)\n", i, t.TotalWeight, t.NumberOfRounds())
		if err := t.Display(ctx, out); err != nil {
			log.Fatalf("displaying trail %d: %v", i, err)
		}
	}

	out.Flush()
	os.Exit(exitCode)
}
