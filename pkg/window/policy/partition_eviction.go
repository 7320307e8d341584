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

package policy

import (
	"fmt"
	"strings"
	"time"
)

// When is the condition that makes partitions eligible for eviction.
type When int

const (
	// PartitionAge evicts partitions not touched for longer than the age.
	PartitionAge When = iota
	// PartitionCount bounds the number of partitions.
	PartitionCount
	// TupleCount bounds the number of tuples across all partitions.
	TupleCount
)

func (w When) String() string {
	switch w {
	case PartitionAge:
		return "partitionAge"
	case PartitionCount:
		return "partitionCount"
	case TupleCount:
		return "tupleCount"
	default:
		return "unknown"
	}
}

// ParseWhen parses the name returned by When.String.
func ParseWhen(s string) (When, error) {
	for _, w := range []When{PartitionAge, PartitionCount, TupleCount} {
		if strings.EqualFold(s, w.String()) {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown partition eviction condition %q", s)
}

// How selects the partitions to evict.
type How int

const (
	// LRU evicts the least recently touched partitions first.
	LRU How = iota
	// OperatorDefined lets the operator pick the partitions.
	OperatorDefined
)

func (h How) String() string {
	switch h {
	case LRU:
		return "lru"
	case OperatorDefined:
		return "operatorDefined"
	default:
		return "unknown"
	}
}

// ParseHow parses the name returned by How.String.
func ParseHow(s string) (How, error) {
	for _, h := range []How{LRU, OperatorDefined} {
		if strings.EqualFold(s, h.String()) {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown partition eviction selection %q", s)
}

// PartitionEvictionPolicy bounds the partitions of a window.
type PartitionEvictionPolicy struct {
	when  When
	how   How
	age   time.Duration
	count int
}

// NewPartitionAge evicts partitions that were not touched for at least age.
func NewPartitionAge(age time.Duration, how How) (PartitionEvictionPolicy, error) {
	if age <= 0 {
		return PartitionEvictionPolicy{}, fmt.Errorf("partition age must be positive, got %v", age)
	}
	return PartitionEvictionPolicy{when: PartitionAge, how: how, age: age}, nil
}

// NewPartitionCount keeps at most max partitions.
func NewPartitionCount(max int, how How) (PartitionEvictionPolicy, error) {
	if max <= 0 {
		return PartitionEvictionPolicy{}, fmt.Errorf("partition count must be positive, got %d", max)
	}
	return PartitionEvictionPolicy{when: PartitionCount, how: how, count: max}, nil
}

// NewTupleCount keeps at most max tuples across the partitions.
func NewTupleCount(max int, how How) (PartitionEvictionPolicy, error) {
	if max <= 0 {
		return PartitionEvictionPolicy{}, fmt.Errorf("tuple count must be positive, got %d", max)
	}
	return PartitionEvictionPolicy{when: TupleCount, how: how, count: max}, nil
}

// When returns the eviction condition.
func (p PartitionEvictionPolicy) When() When {
	return p.when
}

// How returns the victim selection.
func (p PartitionEvictionPolicy) How() How {
	return p.how
}

// Age returns the threshold of a PartitionAge policy, zero otherwise.
func (p PartitionEvictionPolicy) Age() time.Duration {
	return p.age
}

// Count returns the threshold of a PartitionCount or TupleCount policy, zero otherwise.
func (p PartitionEvictionPolicy) Count() int {
	return p.count
}

// Clone returns an independent copy of the policy.
func (p PartitionEvictionPolicy) Clone() PartitionEvictionPolicy {
	return p
}

func (p PartitionEvictionPolicy) String() string {
	if p.when == PartitionAge {
		return fmt.Sprintf("%s(%v, %s)", p.when, p.age, p.how)
	}
	return fmt.Sprintf("%s(%d, %s)", p.when, p.count, p.how)
}
