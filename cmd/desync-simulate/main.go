// Command desync-simulate runs one or many desynchronization protocol
// simulations, emitting per-instance logs for downstream analysis.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oscillon/desync/batchrun"
	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/graph"
	"github.com/oscillon/desync/logging"
	"github.com/oscillon/desync/node"
	"github.com/oscillon/desync/sim"
)

const defaultLogLevel = "info"

var (
	logLevel string
	algo     string
	alpha    int
	outDir   string
	duration int64

	// single-instance mode
	graphFile string
	seed      int64

	// batch mode
	graphDir     string
	seedListFile string
	poolSize     int
)

func algoConfig() (node.Config, error) {
	var kind node.Kind
	switch algo {
	case "sleepwell":
		kind = node.SleepWell
	case "solo":
		kind = node.Solo
	case "solo2":
		kind = node.Solo2
	case "desync":
		kind = node.Desync
	default:
		return node.Config{}, desyncerrors.NewUsageError("algo_flag", "unknown --algo value", nil).
			WithContext("algo", algo)
	}
	cfg := node.Config{Kind: kind, Alpha: alpha}
	if err := cfg.Validate(); err != nil {
		return node.Config{}, err
	}
	return cfg, nil
}

func readSeedList(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, desyncerrors.NewIOError("read_seed_list", "cannot open seed list", err).
			WithContext("path", path)
	}
	defer f.Close()

	var seeds []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, desyncerrors.NewUsageError("read_seed_list", "non-integer seed", err)
		}
		seeds = append(seeds, v)
	}
	return seeds, scanner.Err()
}

// checkOutDir requires outDir to already exist and be empty, mirroring the
// original's pre-flight check (os.path.isdir / os.listdir) ahead of writing
// any run output.
func checkOutDir(outDir string) error {
	info, err := os.Stat(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return desyncerrors.NewUsageError("outdir_check", "output directory does not exist", err).
				WithContext("outdir", outDir)
		}
		return desyncerrors.NewIOError("outdir_check", "cannot stat output directory", err).
			WithContext("outdir", outDir)
	}
	if !info.IsDir() {
		return desyncerrors.NewUsageError("outdir_check", "output path is not a directory", nil).
			WithContext("outdir", outDir)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return desyncerrors.NewIOError("outdir_check", "cannot list output directory", err).
			WithContext("outdir", outDir)
	}
	if len(entries) > 0 {
		return desyncerrors.NewUsageError("outdir_check", "output directory is not empty", nil).
			WithContext("outdir", outDir)
	}
	return nil
}

func readGraphIndex(dir string) ([]string, error) {
	path := filepath.Join(dir, "index.txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, desyncerrors.NewIOError("read_graph_index", "cannot open graph index", err).
			WithContext("path", path)
	}
	defer f.Close()

	var stems []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stems = append(stems, line)
	}
	return stems, scanner.Err()
}

var rootCmd = &cobra.Command{
	Use:   "desync-simulate",
	Short: "Run desynchronization protocol simulations",
}

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Run a single (graph, seed) instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New(logging.Level(logLevel))

		if graphFile == "" {
			return desyncerrors.NewUsageError("single_cmd", "--graph is required", nil)
		}
		if outDir == "" {
			return desyncerrors.NewUsageError("single_cmd", "--outdir is required", nil)
		}
		nodeCfg, err := algoConfig()
		if err != nil {
			return err
		}
		g, err := graph.Load(graphFile)
		if err != nil {
			return err
		}
		if err := checkOutDir(outDir); err != nil {
			return err
		}

		stem := strings.TrimSuffix(filepath.Base(graphFile), filepath.Ext(graphFile))
		outPath := filepath.Join(outDir, fmt.Sprintf("graph-%s-seed-%d.txt", stem, seed))

		if err := sim.RunToFile(sim.Config{Graph: g, Seed: seed, NodeCfg: nodeCfg, Duration: duration}, outPath); err != nil {
			return err
		}
		log.Info().Str("output", outPath).Log("simulation complete")
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a batch of (graph, seed) instances across a worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New(logging.Level(logLevel))

		if graphDir == "" {
			return desyncerrors.NewUsageError("batch_cmd", "--graph-dir is required", nil)
		}
		if seedListFile == "" {
			return desyncerrors.NewUsageError("batch_cmd", "--seed-list is required", nil)
		}
		if outDir == "" {
			return desyncerrors.NewUsageError("batch_cmd", "--outdir is required", nil)
		}
		nodeCfg, err := algoConfig()
		if err != nil {
			return err
		}

		stems, err := readGraphIndex(graphDir)
		if err != nil {
			return err
		}
		seeds, err := readSeedList(seedListFile)
		if err != nil {
			return err
		}
		if err := checkOutDir(outDir); err != nil {
			return err
		}

		var jobs []batchrun.Job
		for _, stem := range stems {
			for _, s := range seeds {
				jobs = append(jobs, batchrun.Job{
					GraphStem: stem,
					GraphFile: filepath.Join(graphDir, stem+".txt"),
					Seed:      s,
				})
			}
		}

		outcomes, err := batchrun.Run(cmd.Context(), batchrun.Config{
			Jobs:     jobs,
			NodeCfg:  nodeCfg,
			OutDir:   outDir,
			Duration: duration,
			PoolSize: poolSize,
		})
		if err != nil {
			return err
		}

		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
				log.Err().Str("graph", o.Job.GraphStem).Int64("seed", o.Job.Seed).Err(o.Err).Log("job failed")
			}
		}
		log.Info().Int("total", len(outcomes)).Int("failed", failed).Log("batch complete")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&algo, "algo", "", "Algorithm: sleepwell, solo, solo2, desync")
	rootCmd.PersistentFlags().IntVar(&alpha, "alpha", 0, "Alpha weight in (0,100); required for solo, solo2, desync")
	rootCmd.PersistentFlags().StringVar(&outDir, "outdir", "", "Output directory for logs")
	rootCmd.PersistentFlags().Int64Var(&duration, "duration", 0, "Simulation horizon in logical time units; 0 selects the default")

	singleCmd.Flags().StringVar(&graphFile, "graph", "", "Adjacency list file")
	singleCmd.Flags().Int64Var(&seed, "seed", 0, "PRNG seed")

	batchCmd.Flags().StringVar(&graphDir, "graph-dir", "", "Directory containing index.txt and adjacency list files")
	batchCmd.Flags().StringVar(&seedListFile, "seed-list", "", "File of newline-separated integer seeds")
	batchCmd.Flags().IntVar(&poolSize, "pool-size", batchrun.DefaultPoolSize, "Worker pool size")

	rootCmd.AddCommand(singleCmd, batchCmd)
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
