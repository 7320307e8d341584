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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/numaproj/numawindow"
	"github.com/numaproj/numawindow/pkg/checkpoint"
	"github.com/numaproj/numawindow/pkg/config"
	"github.com/numaproj/numawindow/pkg/metrics"
	"github.com/numaproj/numawindow/pkg/operator"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/watermark/generator"
	"github.com/numaproj/numawindow/pkg/watermark/publish"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
	"github.com/numaproj/numawindow/pkg/window"
)

func NewSimulateCommand() *cobra.Command {
	var (
		configPath   string
		inputPath    string
		metricsAddr  string
		checkpointID string
		restore      bool
		derive       bool
		replayClock  bool
	)

	command := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a JSON lines stream of tuples, punctuations and watermarks through a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("simulate")
			log.Infow("Starting window simulation", "version", numawindow.GetVersion())
			ctx, stop := signal.NotifyContext(logging.WithLogger(context.Background(), log), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conf, err := config.Load(configPath)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			if metricsAddr != "" {
				v := numawindow.GetVersion()
				metrics.BuildInfo.WithLabelValues(v.Version, v.Platform).Set(1)
				shutdown, err := metrics.NewMetricsServer(metricsAddr).Start(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = shutdown(context.Background()) }()
			}

			s, err := newSimulator(ctx, conf, cmd.OutOrStdout(), derive, replayClock)
			if err != nil {
				return err
			}
			defer s.close()
			if restore {
				if err = s.restore(ctx); err != nil {
					return err
				}
			}
			if err = s.run(ctx, in); err != nil {
				return err
			}
			if checkpointID != "" {
				return s.checkpoint(ctx, checkpoint.ID(checkpointID))
			}
			return nil
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c", "", "Path of the configuration file")
	command.Flags().StringVarP(&inputPath, "input", "i", "-", "Path of the JSON lines input, - for stdin")
	command.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve the Prometheus metrics on, e.g. :2469")
	command.Flags().StringVar(&checkpointID, "checkpoint-id", "", "Checkpoint the window under this id at the end of the input")
	command.Flags().BoolVar(&restore, "restore", false, "Restore the window from the latest checkpoint before replaying")
	command.Flags().BoolVar(&derive, "derive-watermarks", false, "Derive the watermark of an input port from the event times of its tuples")
	command.Flags().BoolVar(&replayClock, "replay-clock", false, "Drive the processing time clock by the time field of the records")
	return command
}

// simulator drives one window the way an operator would.
type simulator struct {
	opCtx       *operator.Context
	window      *window.Window
	clock       *testingclock.FakePassiveClock
	replayClock bool
	derive      bool
	gen         *generator.Generator
	combiner    *publish.Combiner
	store       checkpoint.Store
	printer     *eventPrinter
	closers     []func()
	log         *zap.SugaredLogger
}

func newSimulator(ctx context.Context, conf *config.Config, out io.Writer, derive, replayClock bool) (*simulator, error) {
	s := &simulator{
		clock:       testingclock.NewFakePassiveClock(time.Now()),
		replayClock: replayClock,
		derive:      derive,
		printer:     &eventPrinter{out: out},
		log:         logging.FromContext(ctx),
	}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	opts := append(s.printer.options(), window.WithClock(s.clock))
	opCtx, w, err := newOperatorWindow(ctx, conf, opts...)
	if err != nil {
		return nil, err
	}
	s.opCtx, s.window = opCtx, w
	s.closers = append(s.closers, func() { _ = w.Close() })

	sender, closeSender, err := conf.WatermarkSender(ctx)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeSender)
	if s.gen, err = generator.New(ctx, sender, conf.GeneratorOptions()...); err != nil {
		return nil, err
	}
	s.combiner, err = publish.NewCombiner(ctx, conf.Operator.Name, conf.Operator.InputPorts, s.forwardWatermark)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := conf.CheckpointStore(ctx)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.closers = append(s.closers, closeStore)
	ok = true
	return s, nil
}

// forwardWatermark moves the window to the combined input watermark and emits it as the output watermark.
func (s *simulator) forwardWatermark(ctx context.Context, wm wmb.Watermark) error {
	if err := s.window.OnWatermark(ctx, wm); err != nil {
		return err
	}
	_, err := s.gen.SetWatermark(ctx, wm)
	return err
}

func (s *simulator) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := parseRecord(b)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err = s.apply(ctx, rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.log.Infow("Simulation done", zap.Int("records", line), zap.Int("events", s.printer.events),
		zap.Int("partitions", s.window.PartitionCount()), zap.Int("tuples", s.window.TupleCount()))
	return nil
}

func (s *simulator) advanceClock(rec *inputRecord) {
	now := time.Now()
	if s.replayClock {
		if rec.Time == nil {
			return
		}
		now = rec.Time.Time
	}
	if now.After(s.clock.Now()) {
		s.clock.SetTime(now)
	}
}

func (s *simulator) apply(ctx context.Context, rec *inputRecord) error {
	s.advanceClock(rec)
	return s.opCtx.CriticalSection(func() error {
		switch rec.Type {
		case recordTuple:
			t := rec.tuple()
			if err := s.window.Insert(ctx, t); err != nil {
				return err
			}
			if s.derive && !t.EventTime.IsZero() {
				return s.combiner.HandleWatermark(ctx, rec.Port, s.gen.WatermarkFor(t.EventTime))
			}
			return nil
		case recordWatermark:
			return s.combiner.HandleWatermark(ctx, rec.Port, wmb.Watermark(rec.Watermark.Time))
		case recordPunctuation:
			return s.window.Punctuate(ctx)
		case recordTick:
			if err := s.window.Tick(ctx); err != nil {
				return err
			}
			return s.window.EvictPartitions(ctx)
		case recordCheckpoint:
			return s.checkpoint(ctx, checkpoint.ID(rec.ID))
		}
		return fmt.Errorf("unknown record type %q", rec.Type)
	})
}

func (s *simulator) checkpoint(ctx context.Context, id checkpoint.ID) error {
	if s.store == nil {
		return errors.New("checkpointing is disabled, configure checkpoint.store")
	}
	b, err := s.store.Begin(ctx, id)
	if err != nil {
		return err
	}
	if err = s.window.Checkpoint(ctx, b); err != nil {
		return multierr.Append(err, b.Abort())
	}
	if err = b.Commit(); err != nil {
		return err
	}
	if err = b.Wait(); err != nil {
		return err
	}
	s.log.Infow("Checkpoint committed", zap.String("id", string(id)))
	return nil
}

func (s *simulator) restore(ctx context.Context) error {
	if s.store == nil {
		return errors.New("checkpointing is disabled, configure checkpoint.store")
	}
	id, err := s.store.LatestID(ctx)
	if errors.Is(err, checkpoint.ErrCheckpointNotFound) {
		s.log.Info("No checkpoint to restore from")
		return nil
	}
	if err != nil {
		return err
	}
	b, err := s.store.Open(ctx, id)
	if err != nil {
		return err
	}
	err = s.window.Restore(ctx, b)
	if errors.Is(err, window.ErrNoCheckpoint) {
		s.log.Infow("Checkpoint has no state of the window", zap.String("id", string(id)))
		err = nil
	}
	return multierr.Append(err, b.Abort())
}

func (s *simulator) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
