// Package batchrun fans out (graph, seed) simulation jobs across a worker
// pool, grounded on the result-pool pattern used for per-epoch fan-out
// elsewhere in the wider collector stack (pond.NewResultPool + a group per
// batch). Unlike that grounding use, a batch here must survive individual
// job failures, so each job's outcome — success or error — travels inside
// the result value rather than the pool's own error channel.
package batchrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/alitto/pond/v2"

	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/graph"
	"github.com/oscillon/desync/node"
	"github.com/oscillon/desync/sim"
)

// DefaultPoolSize is the fixed worker pool size used unless overridden.
const DefaultPoolSize = 8

// Job describes one (graph, seed) simulation to run.
type Job struct {
	GraphStem string
	GraphFile string
	Seed      int64
}

// Outcome is one job's result: either Filename is populated, or Err
// describes why the job failed. A failed job never aborts the batch.
type Outcome struct {
	Job      Job
	Filename string
	Err      error
}

// Config describes one batch run.
type Config struct {
	Jobs     []Job
	NodeCfg  node.Config
	OutDir   string
	Duration int64
	PoolSize int
}

// Run executes every job in cfg.Jobs across a fixed-size worker pool,
// writing graph-<stem>-seed-<n>.txt per job, then an index.txt listing
// produced filenames in graph-major, seed-minor order — the same order
// Jobs is expected to already be in.
func Run(ctx context.Context, cfg Config) ([]Outcome, error) {
	if cfg.OutDir == "" {
		return nil, desyncerrors.NewUsageError("batchrun_run", "output directory is required", nil)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	pool := pond.NewResultPool[Outcome](poolSize)
	group := pool.NewGroupContext(ctx)

	for _, job := range cfg.Jobs {
		job := job
		group.SubmitErr(func() (Outcome, error) {
			return runJob(job, cfg), nil
		})
	}

	outcomes, err := group.Wait()
	if err != nil {
		return nil, desyncerrors.NewInvariantViolation("batchrun_run", "worker pool failed", err)
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i].Job, outcomes[j].Job
		if a.GraphStem != b.GraphStem {
			return a.GraphStem < b.GraphStem
		}
		return a.Seed < b.Seed
	})

	if err := writeIndex(cfg.OutDir, outcomes); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func runJob(job Job, cfg Config) Outcome {
	g, err := graph.Load(job.GraphFile)
	if err != nil {
		return Outcome{Job: job, Err: err}
	}

	filename := fmt.Sprintf("graph-%s-seed-%d.txt", job.GraphStem, job.Seed)
	path := filepath.Join(cfg.OutDir, filename)

	simCfg := sim.Config{Graph: g, Seed: job.Seed, NodeCfg: cfg.NodeCfg, Duration: cfg.Duration}
	if err := sim.RunToFile(simCfg, path); err != nil {
		return Outcome{Job: job, Err: err}
	}
	return Outcome{Job: job, Filename: filename}
}

func writeIndex(outDir string, outcomes []Outcome) error {
	path := filepath.Join(outDir, "index.txt")
	f, err := os.Create(path)
	if err != nil {
		return desyncerrors.NewIOError("batchrun_write_index", "cannot create index file", err).
			WithContext("path", path)
	}
	defer f.Close()

	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		if _, err := fmt.Fprintln(f, o.Filename); err != nil {
			return desyncerrors.NewIOError("batchrun_write_index", "failed writing index entry", err)
		}
	}
	return nil
}
