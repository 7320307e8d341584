/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	"github.com/numaproj/numawindow/pkg/checkpoint"
	"github.com/numaproj/numawindow/pkg/config"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/window"
)

func NewInspectCommand() *cobra.Command {
	var (
		configPath string
		id         string
		verbose    bool
		output     string
	)

	command := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the window state stored in a checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("inspect")
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logging.WithLogger(ctx, log)
			conf, err := config.Load(configPath)
			if err != nil {
				return err
			}
			s, err := loadCheckpointSummary(ctx, conf, checkpoint.ID(id))
			if err != nil {
				return err
			}
			switch output {
			case "json":
				b, err := json.MarshalIndent(s.view(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			case "yaml":
				b, err := yaml.Marshal(s.view())
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			case "", "text":
				return s.print(cmd.OutOrStdout(), verbose)
			}
			return fmt.Errorf("unknown output format %q", output)
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c", "", "Path of the configuration file")
	command.Flags().StringVar(&id, "id", "", "Checkpoint id, the latest checkpoint if empty")
	command.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print one row per partition")
	command.Flags().StringVarP(&output, "output", "o", "text", "Output format, one of text, json or yaml")
	return command
}

type partitionSummary struct {
	key         string
	records     int
	firstSeq    uint64
	lastSeq     uint64
	lastTouched time.Time
}

type checkpointSummary struct {
	id         checkpoint.ID
	window     string
	config     string
	watermark  string
	tuples     int
	partitions []partitionSummary
	// sizes are the partition sizes, ages the insertion ages of the tuples relative to the newest tuple.
	sizes stats.Float64Data
	ages  stats.Float64Data
}

func loadCheckpointSummary(ctx context.Context, conf *config.Config, id checkpoint.ID) (_ *checkpointSummary, err error) {
	store, closeStore, err := conf.CheckpointStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("checkpointing is disabled, configure checkpoint.store")
	}
	defer closeStore()

	if id == "" {
		if id, err = store.LatestID(ctx); err != nil {
			return nil, err
		}
	}
	_, w, err := newOperatorWindow(ctx, conf)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, w.Close()) }()

	b, err := store.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = multierr.Append(w.Restore(ctx, b), b.Abort()); err != nil {
		return nil, err
	}
	return summarize(id, w), nil
}

func summarize(id checkpoint.ID, w *window.Window) *checkpointSummary {
	s := &checkpointSummary{
		id:        id,
		window:    w.Name(),
		config:    w.Config().String(),
		watermark: w.Watermark().String(),
		tuples:    w.TupleCount(),
	}
	var newest time.Time
	var inserted []time.Time
	for _, key := range w.Keys() {
		p, ok := w.Partition(key)
		if !ok {
			continue
		}
		ps := partitionSummary{key: key, records: p.Len(), lastTouched: p.LastTouched()}
		for i, r := range p.Records() {
			if i == 0 {
				ps.firstSeq = r.Seq
			}
			ps.lastSeq = r.Seq
			inserted = append(inserted, r.InsertedAt)
			if r.InsertedAt.After(newest) {
				newest = r.InsertedAt
			}
		}
		s.partitions = append(s.partitions, ps)
		s.sizes = append(s.sizes, float64(ps.records))
	}
	for _, t := range inserted {
		s.ages = append(s.ages, newest.Sub(t).Seconds())
	}
	sort.Slice(s.partitions, func(i, j int) bool {
		return s.partitions[i].key < s.partitions[j].key
	})
	return s
}

type distributionView struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

type partitionView struct {
	Key         string    `json:"key"`
	Records     int       `json:"records"`
	FirstSeq    uint64    `json:"firstSeq"`
	LastSeq     uint64    `json:"lastSeq"`
	LastTouched time.Time `json:"lastTouched"`
}

// summaryView is the structured form of the summary for the json and yaml outputs.
type summaryView struct {
	Checkpoint    string           `json:"checkpoint"`
	Window        string           `json:"window"`
	Config        string           `json:"config"`
	Watermark     string           `json:"watermark"`
	Tuples        int              `json:"tuples"`
	PartitionSize distributionView `json:"partitionSize"`
	TupleAge      distributionView `json:"tupleAgeSeconds"`
	Partitions    []partitionView  `json:"partitions"`
}

func newDistributionView(data stats.Float64Data) distributionView {
	mean, median, p95, maximum := distribution(data)
	return distributionView{Mean: mean, Median: median, P95: p95, Max: maximum}
}

func (s *checkpointSummary) view() summaryView {
	v := summaryView{
		Checkpoint:    string(s.id),
		Window:        s.window,
		Config:        s.config,
		Watermark:     s.watermark,
		Tuples:        s.tuples,
		PartitionSize: newDistributionView(s.sizes),
		TupleAge:      newDistributionView(s.ages),
		Partitions:    make([]partitionView, 0, len(s.partitions)),
	}
	for _, p := range s.partitions {
		v.Partitions = append(v.Partitions, partitionView{Key: p.key, Records: p.records, FirstSeq: p.firstSeq, LastSeq: p.lastSeq, LastTouched: p.lastTouched})
	}
	return v
}

// distribution returns mean, median, p95 and max of the data, all zero when it is empty.
func distribution(data stats.Float64Data) (mean, median, p95, maximum float64) {
	if len(data) == 0 {
		return
	}
	mean, _ = stats.Mean(data)
	median, _ = stats.Median(data)
	p95, _ = stats.Percentile(data, 95)
	maximum, _ = stats.Max(data)
	return
}

func (s *checkpointSummary) print(out io.Writer, verbose bool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Checkpoint:\t%s\n", s.id)
	fmt.Fprintf(tw, "Window:\t%s\n", s.window)
	fmt.Fprintf(tw, "Config:\t%s\n", s.config)
	fmt.Fprintf(tw, "Watermark:\t%s\n", s.watermark)
	fmt.Fprintf(tw, "Partitions:\t%d\n", len(s.partitions))
	fmt.Fprintf(tw, "Tuples:\t%d\n", s.tuples)
	mean, median, p95, maximum := distribution(s.sizes)
	fmt.Fprintf(tw, "Partition size:\tmean %.2f\tmedian %.2f\tp95 %.2f\tmax %.0f\n", mean, median, p95, maximum)
	mean, median, p95, maximum = distribution(s.ages)
	fmt.Fprintf(tw, "Tuple age (s):\tmean %.2f\tmedian %.2f\tp95 %.2f\tmax %.2f\n", mean, median, p95, maximum)
	if verbose && len(s.partitions) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "KEY\tRECORDS\tFIRST SEQ\tLAST SEQ\tLAST TOUCHED")
		for _, p := range s.partitions {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", p.key, p.records, p.firstSeq, p.lastSeq, p.lastTouched.Format(time.RFC3339Nano))
		}
	}
	return tw.Flush()
}
