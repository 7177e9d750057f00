// Command desync-analyze derives scalar metrics from simulation log files:
// minimum broadcast count, convergence time (optionally aggregated into a
// CDF across every log in a directory), or maximum final deficit.
package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oscillon/desync/analyze"
	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/node"
	"github.com/oscillon/desync/phase"
	"github.com/oscillon/desync/simlog"
)

var (
	logDir   string
	outFile  string
	interval int64
	duration int64
	bins     int

	minBroadcastCount bool
	convergeTime      bool
	cdf               bool
	deficitMode       string
)

var rootCmd = &cobra.Command{
	Use:   "desync-analyze",
	Short: "Derive scalar metrics from desynchronization simulation logs",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.Flags().StringVar(&logDir, "logdir", "", "Directory of merged simulation log files")
	rootCmd.Flags().StringVar(&outFile, "outfile", "", "Output file; defaults to stdout")
	rootCmd.Flags().Int64Var(&interval, "interval", phase.Interval, "Nominal broadcast interval, in log time units")
	rootCmd.Flags().Int64Var(&duration, "duration", 0, "Simulation horizon used for convergence-time analysis; required with --converge-time")
	rootCmd.Flags().IntVar(&bins, "bins", 20, "Number of equal-width bins for --cdf")

	rootCmd.Flags().BoolVar(&minBroadcastCount, "min-broadcast-count", false, "Report the minimum per-node broadcast count")
	rootCmd.Flags().BoolVar(&convergeTime, "converge-time", false, "Report convergence time")
	rootCmd.Flags().BoolVar(&cdf, "cdf", false, "Aggregate --converge-time across every log in --logdir into a CDF")
	rootCmd.Flags().StringVar(&deficitMode, "deficit", "", "Report deficit: \"transient\" or \"last\" (maximum final deficit)")
}

// logFiles lists every regular file directly under dir, sorted, each taken
// to be one instance's merged simulation log.
func logFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, desyncerrors.NewIOError("logfiles", "cannot read log directory", err).
			WithContext("path", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	modes := 0
	for _, m := range []bool{minBroadcastCount, convergeTime, deficitMode != ""} {
		if m {
			modes++
		}
	}
	if logDir == "" {
		return desyncerrors.NewUsageError("analyze_cmd", "--logdir is required", nil)
	}
	if modes != 1 {
		return desyncerrors.NewUsageError("analyze_cmd", "exactly one of --min-broadcast-count, --converge-time, --deficit is required", nil)
	}
	if cdf && !convergeTime {
		return desyncerrors.NewUsageError("analyze_cmd", "--cdf requires --converge-time", nil)
	}
	if convergeTime && duration <= 0 {
		return desyncerrors.NewUsageError("analyze_cmd", "--duration must be positive with --converge-time", nil)
	}
	if deficitMode != "" && deficitMode != "transient" && deficitMode != "last" {
		return desyncerrors.NewUsageError("analyze_cmd", "--deficit must be \"transient\" or \"last\"", nil)
	}

	files, err := logFiles(logDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return desyncerrors.NewUsageError("analyze_cmd", "--logdir contains no log files", nil).
			WithContext("path", logDir)
	}

	out := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return desyncerrors.NewIOError("analyze_cmd", "cannot create output file", err).
				WithContext("path", outFile)
		}
		defer f.Close()
		out = f
	}

	switch {
	case minBroadcastCount:
		return runPerFile(out, files, func(records []node.Record) (float64, error) {
			return float64(analyze.MinBroadcastCount(records)), nil
		})
	case convergeTime && cdf:
		return runConvergeCDF(out, files)
	case convergeTime:
		return runPerFile(out, files, func(records []node.Record) (float64, error) {
			return analyze.ConvergenceTime(records, interval, duration), nil
		})
	case deficitMode == "last":
		return runPerFile(out, files, analyze.MaxFinalDeficit)
	case deficitMode == "transient":
		return runPerFile(out, files, analyze.ExamineTransientDeficit)
	default:
		return desyncerrors.NewInvariantViolation("analyze_cmd", "no analysis mode selected despite validation", nil)
	}
}

// runPerFile parses each log file in turn and writes "<filename>\t<value>"
// lines, one per file, in the order files is given (already sorted).
func runPerFile(out *os.File, files []string, metric func([]node.Record) (float64, error)) error {
	for _, path := range files {
		records, err := simlog.ParseFile(path)
		if err != nil {
			return err
		}
		v, err := metric(records)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", filepath.Base(path), formatMetric(v))
	}
	return nil
}

// runConvergeCDF computes convergence time per file, then bins the finite
// values into a CDF over [0, max(finite values)]. A non-convergent instance
// (+Inf) counts toward the CDF's denominator but never sets the bin range.
func runConvergeCDF(out *os.File, files []string) error {
	values := make([]float64, 0, len(files))
	maxFinite := 0.0
	for _, path := range files {
		records, err := simlog.ParseFile(path)
		if err != nil {
			return err
		}
		v := analyze.ConvergenceTime(records, interval, duration)
		values = append(values, v)
		if !math.IsInf(v, 1) && v > maxFinite {
			maxFinite = v
		}
	}

	points := analyze.CDF(values, 0, maxFinite, bins)
	for _, p := range points {
		fmt.Fprintf(out, "%g\t%g\n", p.Edge, p.Fraction)
	}
	return nil
}

// formatMetric renders +Inf as the conventional non-convergence symbol
// rather than Go's "+Inf".
func formatMetric(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%g", v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if de, ok := err.(*desyncerrors.SimError); ok && de.Kind == desyncerrors.KindUsage {
		return 2
	}
	return 1
}
