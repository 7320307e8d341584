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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numawindow/pkg/window/policy"
)

func TestSliding_CountEviction(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	w, _ := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustCount(3)}, r)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Insert(ctx, tuple("a", i)))
	}
	assert.Empty(t, r.ofType(BeforeTupleEviction))
	require.Len(t, r.ofType(WindowInitialFull), 1)
	assert.Equal(t, []uint64{0, 1, 2}, seqs(r.ofType(WindowInitialFull)[0].Records))

	r.reset()
	require.NoError(t, w.Insert(ctx, tuple("a", 3)))
	assert.Equal(t, []EventType{BeforeTupleInsertion, BeforeTupleEviction, AfterTupleEviction, AfterTupleInsertion}, r.types())
	assert.Equal(t, []uint64{0}, seqs(r.events[1].Records))

	// N+k inserts leave exactly N records, the newest ones
	for i := 4; i < 10; i++ {
		require.NoError(t, w.Insert(ctx, tuple("a", i)))
	}
	assert.Equal(t, []uint64{7, 8, 9}, partitionSeqs(t, w, "a"))
	assert.Equal(t, 3, w.TupleCount())
	assert.Len(t, r.ofType(AfterTupleEviction), 7)
	// the initial full event is reported once
	assert.Empty(t, r.ofType(WindowInitialFull))
}

func TestSliding_CountEvictionScenario(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	w, clk := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustCount(3)}, r)

	for i, key := range []string{"A", "A", "A", "A", "B"} {
		clk.SetTime(epoch.Add(time.Duration(i) * time.Second))
		require.NoError(t, w.Insert(ctx, tuple(key, i+1)))
	}
	// A holds records 2, 3, 4 and B holds record 5
	assert.Equal(t, []uint64{1, 2, 3}, partitionSeqs(t, w, "A"))
	assert.Equal(t, []uint64{4}, partitionSeqs(t, w, "B"))
	assert.Equal(t, []uint64{0}, seqs(r.ofType(AfterTupleEviction)[0].Records))
}

func TestSliding_DeltaEviction(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	w, _ := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustDelta("payload.v", 2)}, r)

	for _, v := range []int{1, 2, 3} {
		require.NoError(t, w.Insert(ctx, tuple("a", v)))
	}
	assert.Empty(t, r.ofType(AfterTupleEviction))

	// 1 is too far from 4, 2 and 3 are not
	require.NoError(t, w.Insert(ctx, tuple("a", 4)))
	assert.Equal(t, []uint64{1, 2, 3}, partitionSeqs(t, w, "a"))

	// records in the middle go as well
	require.NoError(t, w.Insert(ctx, tuple("a", 10)))
	assert.Equal(t, []uint64{4}, partitionSeqs(t, w, "a"))
	assert.Len(t, r.ofType(AfterTupleEviction), 4)
	assert.Equal(t, 1, w.TupleCount())
}

func TestSliding_DeltaEvictionWithExpression(t *testing.T) {
	ctx := context.Background()
	w, err := NewDetached(ctx, Config{Type: Sliding, Eviction: policy.MustDelta("payload.price", 0.5)})
	require.NoError(t, err)
	for _, p := range []string{`{"price": 10.0}`, `{"price": 10.4}`, `{"price": 10.8}`} {
		require.NoError(t, w.Insert(ctx, Tuple{Keys: []string{"x"}, Payload: []byte(p)}))
	}
	assert.Equal(t, []uint64{1, 2}, partitionSeqs(t, w, "x"))
}

func TestSliding_TimeEviction(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	w, clk := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustTime(10 * time.Second)}, r)

	require.NoError(t, w.Insert(ctx, tuple("a", 0)))
	clk.SetTime(epoch.Add(5 * time.Second))
	require.NoError(t, w.Insert(ctx, tuple("a", 1)))
	// exactly the interval old is still in the window
	clk.SetTime(epoch.Add(10 * time.Second))
	require.NoError(t, w.Insert(ctx, tuple("a", 2)))
	assert.Equal(t, []uint64{0, 1, 2}, partitionSeqs(t, w, "a"))

	clk.SetTime(epoch.Add(12 * time.Second))
	require.NoError(t, w.Insert(ctx, tuple("a", 3)))
	assert.Equal(t, []uint64{1, 2, 3}, partitionSeqs(t, w, "a"))

	// Tick evicts without an insert
	clk.SetTime(epoch.Add(21 * time.Second))
	require.NoError(t, w.Tick(ctx))
	assert.Equal(t, []uint64{3}, partitionSeqs(t, w, "a"))
	assert.Len(t, r.ofType(AfterTupleEviction), 3)
	assert.Equal(t, 1, w.TupleCount())
}

func TestSliding_CountTrigger(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	trigger := policy.MustCount(2)
	w, _ := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustCount(3), Trigger: &trigger}, r)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Insert(ctx, tuple("a", i)))
	}
	require.NoError(t, w.Insert(ctx, tuple("b", 0)))
	triggers := r.ofType(WindowTrigger)
	require.Len(t, triggers, 2)
	assert.Equal(t, []uint64{0, 1}, seqs(triggers[0].Records))
	assert.Equal(t, []uint64{1, 2, 3}, seqs(triggers[1].Records))
	assert.Equal(t, "a", triggers[1].PartitionKey)
	// the trigger snapshot does not change with the partition
	require.NoError(t, w.Insert(ctx, tuple("a", 5)))
	assert.Equal(t, []uint64{1, 2, 3}, seqs(triggers[1].Records))
}

func TestSliding_DeltaTrigger(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	trigger := policy.MustDelta("payload.v", 5)
	w, _ := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustCount(10), Trigger: &trigger}, r)

	for _, v := range []int{1, 3, 7, 8, 13} {
		require.NoError(t, w.Insert(ctx, tuple("a", v)))
	}
	triggers := r.ofType(WindowTrigger)
	require.Len(t, triggers, 2)
	assert.Len(t, triggers[0].Records, 3)
	assert.Len(t, triggers[1].Records, 5)
}

func TestSliding_TimeTrigger(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	trigger := policy.MustTime(10 * time.Second)
	w, clk := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustCount(10), Trigger: &trigger}, r)

	require.NoError(t, w.Insert(ctx, tuple("a", 0)))
	clk.SetTime(epoch.Add(5 * time.Second))
	require.NoError(t, w.Insert(ctx, tuple("a", 1)))
	assert.Empty(t, r.ofType(WindowTrigger))

	clk.SetTime(epoch.Add(10 * time.Second))
	require.NoError(t, w.Insert(ctx, tuple("a", 2)))
	require.Len(t, r.ofType(WindowTrigger), 1)

	// an idle window fires on Tick
	clk.SetTime(epoch.Add(19 * time.Second))
	require.NoError(t, w.Tick(ctx))
	assert.Len(t, r.ofType(WindowTrigger), 1)
	clk.SetTime(epoch.Add(20 * time.Second))
	require.NoError(t, w.Tick(ctx))
	require.Len(t, r.ofType(WindowTrigger), 2)
	assert.Len(t, r.ofType(WindowTrigger)[1].Records, 3)
}

func TestSliding_PunctuationAndWatermarkAreIgnored(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	w, _ := newTestWindow(t, Config{Type: Sliding, Eviction: policy.MustCount(3)}, r)
	require.NoError(t, w.Insert(ctx, tuple("a", 0)))
	r.reset()
	require.NoError(t, w.Punctuate(ctx))
	require.NoError(t, w.OnWatermark(ctx, wmAt(time.Minute)))
	assert.Empty(t, r.events)
	assert.Equal(t, 1, w.TupleCount())
	assert.Equal(t, wmAt(time.Minute), w.Watermark())
	assert.Error(t, w.Flush(ctx, "a"))
}
