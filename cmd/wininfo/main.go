// Command wininfo prints STFT reconstruction properties of the analysis
// windows available to the spectral compressor.
//
// Usage:
//
//	wininfo [flags] [window-name ...]
//
// Without arguments it prints info for all window types.
//
// Examples:
//
//	wininfo hann
//	wininfo --fft-size 1024 --overlap 2 sqrt-hann hann
//	wininfo --alpha 0.25 tukey
package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/cwbudde/algo-speccomp/dsp/window"
)

var allTypes = []window.Type{
	window.TypeRectangular,
	window.TypeHann,
	window.TypeSqrtHann,
	window.TypeHamming,
	window.TypeBlackman,
	window.TypeTukey,
}

// CLI defines the command-line interface.
type CLI struct {
	Windows []string `arg:"" optional:"" name:"window" help:"Window names (default: all)"`
	FFTSize int      `name:"fft-size" help:"Frame length in samples" default:"2048"`
	Overlap int      `name:"overlap" help:"Overlap factor" default:"4"`
	Alpha   float64  `name:"alpha" help:"Tukey taper ratio" default:"0.5"`
}

// row is the reconstruction summary of one window at one hop.
type row struct {
	name          string
	enbw          float64
	normalization float64
	rippleDB      float64
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("wininfo"),
		kong.Description("Prints STFT reconstruction properties of analysis windows."),
		kong.UsageOnError(),
	)

	err := run(cli, os.Stdout)
	ctx.FatalIfErrorf(err)
}

func run(c *CLI, w io.Writer) error {
	if c.Overlap <= 0 || c.FFTSize%c.Overlap != 0 {
		return fmt.Errorf("overlap must divide fft size %d: %d", c.FFTSize, c.Overlap)
	}

	types := allTypes
	if len(c.Windows) > 0 {
		types = make([]window.Type, 0, len(c.Windows))
		for _, name := range c.Windows {
			t, err := window.ParseType(name)
			if err != nil {
				return err
			}

			types = append(types, t)
		}
	}

	hop := c.FFTSize / c.Overlap
	rows := make([]row, 0, len(types))
	for _, t := range types {
		r, err := analyze(t, c.FFTSize, hop, c.Alpha)
		if err != nil {
			return err
		}

		rows = append(rows, r)
	}

	return printRows(w, rows, c.FFTSize, hop)
}

// analyze measures how far the squared window deviates from a constant sum
// when frames are spaced hop samples apart, after overlap-add normalization.
func analyze(t window.Type, size, hop int, alpha float64) (row, error) {
	coeffs := window.Generate(t, size, window.WithPeriodic(), window.WithAlpha(alpha))

	norm, err := window.OverlapAddNormalization(coeffs, hop)
	if err != nil {
		return row{}, fmt.Errorf("%s: %w", window.Info(t).Name, err)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for n := range hop {
		sum := 0.0
		for i := n; i < size; i += hop {
			sum += coeffs[i] * coeffs[i]
		}

		sum *= norm
		lo = math.Min(lo, sum)
		hi = math.Max(hi, sum)
	}

	ripple := math.Inf(1)
	if lo > 0 {
		ripple = 20 * math.Log10(hi/lo)
	}

	return row{
		name:          window.Info(t).Name,
		enbw:          window.Info(t).ENBW,
		normalization: norm,
		rippleDB:      ripple,
	}, nil
}

func printRows(w io.Writer, rows []row, size, hop int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Window\tSize\tHop\tENBW [bins]\tOLA gain\tRipple [dB]\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}

	if _, err := fmt.Fprintf(tw, "------\t----\t---\t-----------\t--------\t-----------\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}

	for _, r := range rows {
		enbw := "-"
		if r.enbw > 0 {
			enbw = fmt.Sprintf("%.4f", r.enbw)
		}

		if _, err := fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.6f\t%.4f\n",
			r.name, size, hop, enbw, r.normalization, r.rippleDB); err != nil {
			return fmt.Errorf("failed to write output row: %w", err)
		}
	}

	return tw.Flush()
}
