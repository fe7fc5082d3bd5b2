//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

// Job is one output variant of a batch
type Job struct {
	Name  string // channel name, for reporting
	Dest  string
	Value []byte
}

// JobResult is the outcome of one Job. Exactly one of Result, Err or Skipped
// is set.
type JobResult struct {
	Job      Job
	Result   *Result
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Kind returns the error kind of the job, "ok" or "skipped"
func (r JobResult) Kind() string {
	if r.Skipped {
		return "skipped"
	}
	return sigerrors.KindOf(r.Err)
}

// BatchOptions controls how Batch writes its outputs
type BatchOptions struct {
	// Jobs is the number of variants written concurrently. Zero or less
	// means one at a time.
	Jobs int
	// Overwrite replaces existing outputs; otherwise they are skipped
	Overwrite bool
	// InPlace copies then rewrites each output directly instead of going
	// through a temporary file
	InPlace bool
}

// Batch writes one variant of src per job. A failing job does not stop the
// others; every job gets a result, in the same order as jobs. The only error
// returned is a failure to prepare the run or a cancelled context.
func Batch(ctx context.Context, src string, jobs []Job, opts BatchOptions) ([]JobResult, error) {
	runID := uuid.New().String()
	logger := zerolog.Ctx(ctx).With().Str("run", runID).Str("src", src).Logger()
	if _, err := os.Stat(src); err != nil {
		return nil, sigerrors.IO("stat source", err)
	}
	seen := make(map[string]string, len(jobs))
	for _, job := range jobs {
		abs, err := filepath.Abs(job.Dest)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[abs]; ok {
			return nil, fmt.Errorf("channels %q and %q both write to %s", other, job.Name, job.Dest)
		}
		seen[abs] = job.Name
		if same, err := samePath(src, job.Dest); err != nil {
			return nil, err
		} else if same {
			return nil, fmt.Errorf("channel %q would overwrite the source %s", job.Name, src)
		}
	}
	logger.Info().Int("channels", len(jobs)).Int("jobs", opts.Jobs).Msg("starting batch")
	results := make([]JobResult, len(jobs))
	eg, ctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		eg.SetLimit(opts.Jobs)
	} else {
		eg.SetLimit(1)
	}
	for i, job := range jobs {
		i, job := i, job
		eg.Go(func() error {
			jobLog := logger.With().Str("channel", job.Name).Str("dest", job.Dest).Logger()
			start := time.Now()
			res, skipped, err := runJob(jobLog.WithContext(ctx), src, job, opts)
			results[i] = JobResult{Job: job, Result: res, Err: err, Skipped: skipped, Duration: time.Since(start)}
			switch {
			case err != nil:
				jobLog.Error().Err(err).Str("kind", sigerrors.KindOf(err)).Msg("channel variant failed")
			case skipped:
				jobLog.Info().Msg("output exists, skipped")
			default:
				jobLog.Info().Int64("size", res.NewSize).Dur("dur", results[i].Duration).Msg("channel variant written")
			}
			// only cancellation stops the remaining jobs
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runJob(ctx context.Context, src string, job Job, opts BatchOptions) (*Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(job.Dest), 0755); err != nil {
		return nil, false, sigerrors.IO("creating output directory", err)
	}
	unlock, err := LockDest(job.Dest)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	if !opts.Overwrite {
		if _, err := os.Lstat(job.Dest); err == nil {
			return nil, true, nil
		}
	}
	var res *Result
	if opts.InPlace {
		res, err = Inject(ctx, src, job.Dest, job.Value)
	} else {
		res, err = InjectAtomic(ctx, src, job.Dest, job.Value)
	}
	return res, false, err
}
