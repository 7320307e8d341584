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

package window

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/operator"
	"github.com/numaproj/numawindow/pkg/shared/expr"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
	"github.com/numaproj/numawindow/pkg/window/policy"
	"github.com/numaproj/numawindow/pkg/window/tracker"
)

// detachedPort is the port reported by windows that are not attached to an operator.
const detachedPort = -1

// Window buffers the tuples of one input port.
type Window struct {
	name  string
	port  int
	cfg   Config
	opCtx *operator.Context
	opts  *options

	partitions   map[string]*Partition
	// order is the creation order of the live partitions.
	order        []string
	tupleCount   int
	nextSeq      uint64
	nextPartSeq  uint64
	watermark    wmb.Watermark
	attribute    AttributeFunc
	closeOnce    sync.Once
	closed       bool
	metricLabels []string
	log          *zap.SugaredLogger
}

var _ operator.Window = (*Window)(nil)

// New returns a window attached to the input port of the operator. The window is registered with the operator
// context until Close.
func New(ctx context.Context, opCtx *operator.Context, port int, cfg Config, opts ...Option) (*Window, error) {
	if opCtx == nil {
		return nil, fmt.Errorf("operator context is required, use NewDetached for a window without operator")
	}
	w, err := newWindow(ctx, opCtx, port, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err = opCtx.RegisterWindow(port, w); err != nil {
		return nil, err
	}
	return w, nil
}

// NewDetached returns a window which is not attached to any operator.
func NewDetached(ctx context.Context, cfg Config, opts ...Option) (*Window, error) {
	return newWindow(ctx, nil, detachedPort, cfg, opts...)
}

func newWindow(ctx context.Context, opCtx *operator.Context, port int, cfg Config, opts ...Option) (*Window, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	operatorName := ""
	if opCtx != nil {
		operatorName = opCtx.Name()
	}
	if o.name == "" {
		if opCtx != nil {
			o.name = fmt.Sprintf("%s-%d", operatorName, port)
		} else {
			o.name = "detached"
		}
	}
	w := &Window{
		name:         o.name,
		port:         port,
		cfg:          cfg.Clone(),
		opCtx:        opCtx,
		opts:         o,
		partitions:   make(map[string]*Partition),
		order:        make([]string, 0),
		watermark:    wmb.InitialWatermark,
		metricLabels: []string{operatorName, strconv.Itoa(port), o.name},
		log:          logging.FromContext(ctx).With("window", o.name, "port", port, "config", cfg.String()),
	}
	if err := w.validate(); err != nil {
		w.log.Errorw("Invalid window configuration", zap.Error(err))
		return nil, err
	}
	return w, nil
}

func (w *Window) configErr(format string, args ...interface{}) error {
	return ConfigErr{Name: w.name, Message: fmt.Sprintf(format, args...)}
}

// validate checks the configuration and prepares the attribute extractor.
func (w *Window) validate() error {
	cfg := w.cfg
	switch cfg.Type {
	case Sliding:
		if !slidingKind(cfg.Eviction.Kind()) {
			return w.configErr("%s eviction policy is not supported by a sliding window", cfg.Eviction.Kind())
		}
		if cfg.Trigger != nil && !slidingKind(cfg.Trigger.Kind()) {
			return w.configErr("%s trigger policy is not supported by a sliding window", cfg.Trigger.Kind())
		}
	case Tumbling:
		if cfg.Trigger != nil {
			return w.configErr("a tumbling window has no trigger policy, got %s", cfg.Trigger)
		}
	default:
		return w.configErr("unknown window type %d", cfg.Type)
	}
	if err := w.validatePolicy(cfg.Eviction); err != nil {
		return err
	}
	if cfg.Trigger != nil {
		if err := w.validatePolicy(*cfg.Trigger); err != nil {
			return err
		}
	}

	var deltaAttribute string
	if cfg.Eviction.Kind() == policy.Delta {
		deltaAttribute = cfg.Eviction.Attribute()
	}
	if cfg.Trigger != nil && cfg.Trigger.Kind() == policy.Delta {
		if deltaAttribute != "" && deltaAttribute != cfg.Trigger.Attribute() && w.opts.attributeFunc == nil {
			return w.configErr("eviction and trigger delta policies use different attributes %q and %q", deltaAttribute, cfg.Trigger.Attribute())
		}
		deltaAttribute = cfg.Trigger.Attribute()
	}
	if deltaAttribute != "" {
		if w.opts.attributeFunc != nil {
			w.attribute = w.opts.attributeFunc
		} else {
			f, err := expressionAttribute(deltaAttribute)
			if err != nil {
				return w.configErr("delta attribute: %v", err)
			}
			w.attribute = f
		}
	}

	if pe := cfg.PartitionEviction; pe != nil {
		if pe.How() == policy.OperatorDefined && w.opts.victimSelector == nil {
			return w.configErr("operator defined partition eviction requires a victim selector")
		}
		if pe.When() == policy.PartitionAge && pe.Age() <= 0 || pe.When() != policy.PartitionAge && pe.Count() <= 0 {
			return w.configErr("partition eviction policy %s has no threshold", pe)
		}
	}
	return nil
}

// validatePolicy rejects zero value policies, which bypass the policy constructors.
func (w *Window) validatePolicy(p policy.WindowPolicy) error {
	switch p.Kind() {
	case policy.Count:
		if p.Count() <= 0 {
			return w.configErr("%s policy requires a positive count", p.Kind())
		}
	case policy.Time, policy.EventTime:
		if p.Interval() <= 0 {
			return w.configErr("%s policy requires a positive interval", p.Kind())
		}
	case policy.Delta:
		if p.Attribute() == "" {
			return w.configErr("delta policy requires an attribute")
		}
	}
	return nil
}

func slidingKind(k policy.Kind) bool {
	return k == policy.Count || k == policy.Delta || k == policy.Time
}

// sharedEvaluator is the expression evaluator of all windows, it caches the compiled attribute expressions.
var (
	sharedEvaluator     *expr.Evaluator
	sharedEvaluatorOnce sync.Once
	sharedEvaluatorErr  error
)

func expressionAttribute(expression string) (AttributeFunc, error) {
	sharedEvaluatorOnce.Do(func() {
		sharedEvaluator, sharedEvaluatorErr = expr.NewEvaluator(expr.DefaultCacheSize)
	})
	if sharedEvaluatorErr != nil {
		return nil, sharedEvaluatorErr
	}
	if _, err := sharedEvaluator.Compile(expression); err != nil {
		return nil, err
	}
	return func(t Tuple) (float64, error) {
		return sharedEvaluator.EvalFloat(expression, t.Payload)
	}, nil
}

// Close detaches the window from its operator. Only the first call has an effect.
func (w *Window) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.closed = true
		activePartitions.DeleteLabelValues(w.metricLabels...)
		bufferedTuples.DeleteLabelValues(w.metricLabels...)
		if w.opCtx != nil {
			err = w.opCtx.UnregisterWindow(w.port, w)
		}
	})
	return err
}

// emit reports the event to the handlers of its type, with the window as the current window of the call chain.
func (w *Window) emit(ctx context.Context, e *Event) error {
	handlers := w.opts.handlers[e.Type]
	windowEvents.WithLabelValues(append(w.metricLabels, e.Type.String())...).Inc()
	if len(handlers) == 0 {
		return nil
	}
	e.Window = w
	e.Watermark = w.watermark
	return tracker.Scope(ctx, w, func(ctx context.Context) error {
		for _, h := range handlers {
			if err := h.Handle(ctx, e); err != nil {
				return fmt.Errorf("%s handler of window %s failed: %w", e.Type, w.name, err)
			}
		}
		return nil
	})
}

// CurrentWindow returns the window whose handler or victim selector is running in the call chain of ctx.
func CurrentWindow(ctx context.Context) (*Window, bool) {
	cur, ok := tracker.Current(ctx)
	if !ok {
		return nil, false
	}
	w, ok := cur.(*Window)
	return w, ok
}

// Name returns the window name.
func (w *Window) Name() string {
	return w.name
}

// Port returns the input port, or -1 for a detached window.
func (w *Window) Port() int {
	return w.port
}

// Config returns a copy of the window configuration.
func (w *Window) Config() Config {
	return w.cfg.Clone()
}

// Watermark returns the last watermark the window received.
func (w *Window) Watermark() wmb.Watermark {
	return w.watermark
}

// Partition returns the partition of the key.
func (w *Window) Partition(key string) (*Partition, bool) {
	p, ok := w.partitions[key]
	return p, ok
}

// Keys returns the keys of the live partitions in creation order.
func (w *Window) Keys() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// PartitionCount returns the number of live partitions.
func (w *Window) PartitionCount() int {
	return len(w.partitions)
}

// TupleCount returns the number of buffered tuples across the partitions.
func (w *Window) TupleCount() int {
	return w.tupleCount
}

func (w *Window) checkOpen() error {
	if w.closed {
		return fmt.Errorf("%w: %s", ErrWindowClosed, w.name)
	}
	return nil
}

func (w *Window) partitionFor(key string, now time.Time) *Partition {
	if p, ok := w.partitions[key]; ok {
		return p
	}
	p := newPartition(key, w.nextPartSeq, now)
	w.nextPartSeq++
	w.partitions[key] = p
	w.order = append(w.order, key)
	w.log.Debugw("Created partition", zap.String("key", key))
	return p
}

// destroy removes the partition from the window.
func (w *Window) destroy(key string) {
	p, ok := w.partitions[key]
	if !ok {
		return
	}
	w.tupleCount -= len(p.records)
	delete(w.partitions, key)
	for i, k := range w.order {
		if k == key {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *Window) updateGauges() {
	activePartitions.WithLabelValues(w.metricLabels...).Set(float64(len(w.partitions)))
	bufferedTuples.WithLabelValues(w.metricLabels...).Set(float64(w.tupleCount))
}
