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
	"fmt"
	"strings"
	"time"

	"github.com/numaproj/numawindow/pkg/window/policy"
)

// KeysDelimiter joins the keys of a tuple into its partition key.
const KeysDelimiter = ":"

// Type is the type of the window.
type Type int

const (
	// Sliding windows keep the most recent tuples and fire on their trigger policy.
	Sliding Type = iota
	// Tumbling windows flush all the tuples of a partition at once.
	Tumbling
)

func (t Type) String() string {
	switch t {
	case Sliding:
		return "sliding"
	case Tumbling:
		return "tumbling"
	default:
		return "unknown"
	}
}

// ParseType parses the name returned by Type.String.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "sliding":
		return Sliding, nil
	case "tumbling":
		return Tumbling, nil
	default:
		return 0, fmt.Errorf("unknown window type %q", s)
	}
}

// Config is the configuration of a window.
type Config struct {
	Type Type
	// Eviction decides when tuples leave the window.
	Eviction policy.WindowPolicy
	// Trigger decides when a sliding window fires. Tumbling windows have no trigger.
	Trigger *policy.WindowPolicy
	// PartitionEviction bounds the partitions of the window. Optional.
	PartitionEviction *policy.PartitionEvictionPolicy
}

// Clone returns a copy which shares nothing with the config.
func (c Config) Clone() Config {
	out := Config{Type: c.Type, Eviction: c.Eviction.Clone()}
	if c.Trigger != nil {
		t := c.Trigger.Clone()
		out.Trigger = &t
	}
	if c.PartitionEviction != nil {
		pe := c.PartitionEviction.Clone()
		out.PartitionEviction = &pe
	}
	return out
}

func (c Config) String() string {
	s := fmt.Sprintf("%s(eviction=%s", c.Type, c.Eviction)
	if c.Trigger != nil {
		s += fmt.Sprintf(", trigger=%s", c.Trigger)
	}
	if c.PartitionEviction != nil {
		s += fmt.Sprintf(", partitionEviction=%s", c.PartitionEviction)
	}
	return s + ")"
}

// Tuple is the unit of data inserted into a window.
type Tuple struct {
	// Keys are the partition keys, a tuple without keys goes to the partition "".
	Keys      []string
	EventTime time.Time
	Payload   []byte
}

// PartitionKey returns the key of the partition the tuple belongs to.
func (t Tuple) PartitionKey() string {
	return strings.Join(t.Keys, KeysDelimiter)
}

// Record is a buffered tuple.
type Record struct {
	Tuple
	// Seq is the insertion sequence number, unique within the window.
	Seq uint64
	// InsertedAt is the clock time of the insert.
	InsertedAt time.Time
	// Attribute is the value of the delta attribute, zero if the window has no delta policy.
	Attribute float64
}
