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
	"sort"
	"time"
)

// Partition is the buffered state of one partition key.
type Partition struct {
	key     string
	records []*Record
	// lastTouched is the clock time of the last insert, touchSeq the sequence of that insert.
	lastTouched time.Time
	touchSeq    uint64
	createdSeq  uint64

	// trigger and flush bookkeeping
	sinceTrigger  int
	hasTriggerRef bool
	triggerRef    float64
	lastTrigger   time.Time
	initialFull   bool
	openedAt      time.Time
}

func newPartition(key string, createdSeq uint64, now time.Time) *Partition {
	return &Partition{
		key:         key,
		records:     make([]*Record, 0),
		lastTouched: now,
		createdSeq:  createdSeq,
		lastTrigger: now,
		openedAt:    now,
	}
}

// Key returns the partition key.
func (p *Partition) Key() string {
	return p.key
}

// Len returns the number of buffered records.
func (p *Partition) Len() int {
	return len(p.records)
}

// Records returns the buffered records in insertion order.
func (p *Partition) Records() []*Record {
	out := make([]*Record, len(p.records))
	copy(out, p.records)
	return out
}

// LastTouched returns the time of the last insert.
func (p *Partition) LastTouched() time.Time {
	return p.lastTouched
}

// CreatedSeq returns the creation order of the partition within its window.
func (p *Partition) CreatedSeq() uint64 {
	return p.createdSeq
}

func (p *Partition) touch(now time.Time, seq uint64) {
	p.lastTouched = now
	p.touchSeq = seq
}

// removeAt removes the record at index i.
func (p *Partition) removeAt(i int) {
	copy(p.records[i:], p.records[i+1:])
	p.records[len(p.records)-1] = nil
	p.records = p.records[:len(p.records)-1]
}

// lessRecentlyUsed orders partitions by ascending last touch, the creation order breaks ties.
func lessRecentlyUsed(a, b *Partition) bool {
	if !a.lastTouched.Equal(b.lastTouched) {
		return a.lastTouched.Before(b.lastTouched)
	}
	if a.touchSeq != b.touchSeq {
		return a.touchSeq < b.touchSeq
	}
	return a.createdSeq < b.createdSeq
}

func sortLRU(ps []*Partition) {
	sort.SliceStable(ps, func(i, j int) bool {
		return lessRecentlyUsed(ps[i], ps[j])
	})
}
