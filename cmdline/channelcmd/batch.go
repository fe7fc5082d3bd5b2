/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package channelcmd

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sassoftware/apkchannel/cmdline/shared"
	"github.com/sassoftware/apkchannel/config"
	"github.com/sassoftware/apkchannel/lib/channel"
	"github.com/sassoftware/apkchannel/lib/channelinfo"
)

var BatchCmd = &cobra.Command{
	Use:   "batch --config FILE SRC",
	Short: "Write one APK per configured channel",
	Long: `Write one copy of SRC per channel listed in the configuration file.

Outputs go to the configured output directory, resolved relative to SRC, and
are named by the output pattern. A failed channel does not stop the others.`,
	Args: cobra.ExactArgs(1),
	RunE: batchCmd,
}

var (
	argOutput      string
	argJobs        int
	argMetricsFile string
)

func init() {
	shared.RootCmd.AddCommand(BatchCmd)
	BatchCmd.Flags().StringVarP(&argOutput, "output", "o", "", "Output directory, overriding the configuration")
	BatchCmd.Flags().IntVarP(&argJobs, "jobs", "j", runtime.NumCPU(), "Number of channels to write at once")
	addWriteFlags(BatchCmd.Flags())
	BatchCmd.Flags().StringVar(&argMetricsFile, "metrics-file", "", "Write operation metrics to this file in Prometheus text format")
}

func batchCmd(cmd *cobra.Command, args []string) error {
	shared.Fail(shared.InitConfig())
	cfg := shared.CurrentConfig
	if argOutput != "" {
		abs, err := filepath.Abs(argOutput)
		if err != nil {
			return err
		}
		cfg.Output.Directory = abs
	}
	src := args[0]
	jobs, err := batchJobs(cfg, src)
	if err != nil {
		return err
	}
	ctx := log.Logger.WithContext(cmd.Context())
	results, err := channel.Batch(ctx, src, jobs, channel.BatchOptions{
		Jobs:      argJobs,
		Overwrite: cfg.ShouldOverwrite(),
		InPlace:   argNoAtomic,
	})
	if results != nil {
		printSummary(cfg, results)
	}
	if argMetricsFile != "" {
		if merr := prometheus.WriteToTextfile(argMetricsFile, prometheus.DefaultGatherer); merr != nil {
			log.Error().Err(merr).Str("path", argMetricsFile).Msg("failed to write metrics")
		}
	}
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed != 0 {
		return fmt.Errorf("%d of %d channels failed", failed, len(results))
	}
	return nil
}

func batchJobs(cfg *config.Config, src string) ([]channel.Job, error) {
	jobs := make([]channel.Job, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		value, err := (&channelinfo.Info{Channel: ch.ID(), Extra: ch.Extra()}).Marshal()
		if err != nil {
			return nil, fmt.Errorf("channel \"%s\": %w", ch.Name, err)
		}
		jobs = append(jobs, channel.Job{
			Name:  ch.Name,
			Dest:  cfg.OutputPath(src, ch),
			Value: value,
		})
	}
	return jobs, nil
}

func printSummary(cfg *config.Config, results []channel.JobResult) {
	written := 0
	for _, r := range results {
		market := cfg.MarketName(r.Job.Name)
		switch {
		case r.Err != nil:
			fmt.Printf("%s (%s) ERROR: %s\n", r.Job.Name, market, r.Err)
		case r.Skipped:
			fmt.Printf("%s (%s): exists, skipped %s\n", r.Job.Name, market, r.Job.Dest)
		default:
			written++
			fmt.Printf("%s (%s): %s\n", r.Job.Name, market, r.Job.Dest)
		}
	}
	fmt.Printf("%d of %d channels written\n", written, len(results))
}
