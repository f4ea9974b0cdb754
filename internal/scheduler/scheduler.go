// Package scheduler fans targets out across a bounded worker pool. Workers
// and the optional progress reporter are goroutines, so the shared result
// slice and RunStats are mutex-guarded.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/pipeline"
	"github.com/drew/ptrun/internal/venv"
)

// Executor runs the gate pipeline for one target. *pipeline.Pipeline
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, target model.Target, v *venv.Venv, env map[string]string, stats *model.RunStats, opts pipeline.Options) (*model.TargetResult, int)
}

// Options configures a scheduling run.
type Options struct {
	// AtOnce is the worker count; it must be at least 1.
	AtOnce int
	// ProgressInterval enables the progress reporter when positive.
	ProgressInterval time.Duration
	// PrintCov is forwarded to every pipeline execution.
	PrintCov bool
	// BaseEnv is the environment copied per worker.
	BaseEnv map[string]string
}

// Scheduler dispatches targets to pipeline executions.
type Scheduler struct {
	executor Executor
	out      *output.Writer
}

// New creates a Scheduler.
func New(executor Executor, out *output.Writer) *Scheduler {
	return &Scheduler{executor: executor, out: out}
}

// RunAll runs every target through the pipeline with opts.AtOnce workers
// and returns one result per target. Dispatch order is deterministic
// (targets sorted by definition path); completion order is not.
func (s *Scheduler) RunAll(ctx context.Context, targets []model.Target, v *venv.Venv, stats *model.RunStats, opts Options) ([]model.TargetResult, error) {
	if opts.AtOnce < 1 {
		return nil, errors.New("cannot run with zero workers; check the atonce setting")
	}

	sorted := make([]model.Target, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DefinitionPath < sorted[j].DefinitionPath
	})

	queue := make(chan model.Target, len(sorted))
	for _, t := range sorted {
		queue <- t
	}

	var (
		mu      sync.Mutex
		results []model.TargetResult
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.AtOnce; i++ {
		idx := i + 1
		g.Go(func() error {
			s.runWorker(gctx, idx, queue, v, stats, opts, func(r model.TargetResult) {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			})
			return nil
		})
	}

	if opts.ProgressInterval > 0 {
		s.out.Debug("Adding progress reporter to report every %s", opts.ProgressInterval)
		g.Go(func() error {
			s.reportProgress(gctx, queue, len(sorted), opts.ProgressInterval)
			return nil
		})
	}

	s.out.Debug("Starting to run tests")
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// runWorker drains the queue until a non-blocking dequeue comes up empty.
// Each worker gets its own copy of the base environment with a unique
// coverage data file, so parallel test runs never clobber each other.
func (s *Scheduler) runWorker(ctx context.Context, idx int, queue chan model.Target, v *venv.Venv, stats *model.RunStats, opts Options, collect func(model.TargetResult)) {
	covDataPath := filepath.Join(os.TempDir(), fmt.Sprintf("ptrun.%d.%d.coverage", os.Getpid(), idx))
	env := make(map[string]string, len(opts.BaseEnv)+1)
	for k, val := range opts.BaseEnv {
		env[k] = val
	}
	env["COVERAGE_FILE"] = covDataPath
	defer os.Remove(covDataPath)

	for {
		var target model.Target
		select {
		case target = <-queue:
		default:
			s.out.Debug("test runner %d exiting", idx)
			return
		}

		started := time.Now()
		failResult, stepsRun := s.executor.Execute(ctx, target, v, env, stats, pipeline.Options{PrintCov: opts.PrintCov})
		elapsed := int(time.Since(started).Seconds())

		if failResult != nil {
			collect(*failResult)
		} else {
			successOutput := fmt.Sprintf("%s has passed all configured tests", target.DefinitionPath)
			s.out.Info("%s", successOutput)
			collect(model.TargetResult{
				Target:         target,
				Output:         successOutput,
				RuntimeSeconds: elapsed,
			})
		}

		stats.Set(fmt.Sprintf("suite.%s_runtime", target.Name()), float64(elapsed))
		stats.Set(fmt.Sprintf("suite.%s_completed_steps", target.Name()), float64(stepsRun))
	}
}

// reportProgress logs completion status while the queue still holds work.
// It exits as soon as the last target has been dequeued; the workers finish
// the tail on their own.
func (s *Scheduler) reportProgress(ctx context.Context, queue chan model.Target, total int, interval time.Duration) {
	for len(queue) > 0 {
		done := total - len(queue)
		s.out.Info("%d / %d test suites ran (%d%%)", done, total, int(float64(done)/float64(total)*100))
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
	s.out.Debug("progress reporter finished")
}
