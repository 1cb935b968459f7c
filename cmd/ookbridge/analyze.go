package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/norasector/ookbridge/pkg/analysis"
	"github.com/norasector/ookbridge/pkg/bridge/capture"
)

var (
	analyzeCmd = &cobra.Command{
		Use:   "analyze <capture file>",
		Short: "Print pulse width statistics and suggested thresholds for recorded captures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return analyzeCaptures(f, cmd.OutOrStdout())
		},
	}

	binWidth   float64
	noiseFloor uint16
)

func init() {
	analyzeCmd.Flags().Float64Var(&binWidth, "bin", 50, "histogram bin width in microseconds")
	analyzeCmd.Flags().Uint16Var(&noiseFloor, "noise-floor", 100, "ignore pulses shorter than this many microseconds")
}

func analyzeCaptures(r io.Reader, w io.Writer) error {
	var all []uint16
	n := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		buf, err := capture.ParseLine(line)
		if err != nil {
			fmt.Fprintf(w, "# skipping: %v\n", err)
			continue
		}
		n++
		pulses := buf.Valid()
		all = append(all, pulses...)

		s, err := analysis.Summarize(pulses)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "capture %d: pulses=%d min=%.0f median=%.0f max=%.0f mean=%.1f stddev=%.1f\n",
			n, s.Count, s.Min, s.Median, s.Max, s.Mean, s.StdDev)

		th, err := analysis.SuggestThresholds(pulses, noiseFloor)
		if err != nil {
			fmt.Fprintf(w, "  thresholds: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "  unit=%.0f short=%d medium=%d long=%d\n", th.Unit, th.Short, th.Medium, th.Long)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no captures found")
	}

	buckets, err := analysis.Histogram(all, binWidth)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "histogram:")
	for _, b := range buckets {
		fmt.Fprintf(w, "  %5.0f-%5.0f %6.0f\n", b.Lower, b.Upper, b.Count)
	}
	return nil
}
