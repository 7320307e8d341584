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
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goccy/go-json"

	"github.com/numaproj/numawindow/pkg/window"
)

// Record types of the simulate input.
const (
	recordTuple       = "tuple"
	recordPunctuation = "punctuation"
	recordWatermark   = "watermark"
	recordTick        = "tick"
	recordCheckpoint  = "checkpoint"
)

// inputRecord is one line of the simulate input. A line without type is a tuple.
type inputRecord struct {
	Type      string          `json:"type"`
	Port      int             `json:"port"`
	Keys      []string        `json:"keys"`
	EventTime recordTime      `json:"eventTime"`
	Payload   json.RawMessage `json:"payload"`
	Watermark recordTime      `json:"watermark"`
	// Time is the processing time of the record when the clock is replayed.
	Time *recordTime `json:"time"`
	// ID of the checkpoint record.
	ID string `json:"id"`
}

// recordTime is a time in any layout dateparse understands, zone-less layouts being UTC, or epoch milliseconds.
type recordTime struct {
	time.Time
}

func (t *recordTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string or epoch milliseconds: %w", err)
	}
	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseRecord(line []byte) (*inputRecord, error) {
	rec := &inputRecord{}
	if err := json.Unmarshal(line, rec); err != nil {
		return nil, fmt.Errorf("invalid record %q: %w", string(line), err)
	}
	if rec.Type == "" {
		rec.Type = recordTuple
	}
	switch rec.Type {
	case recordTuple:
		if len(rec.Keys) == 0 {
			return nil, fmt.Errorf("tuple without keys: %q", string(line))
		}
	case recordWatermark:
		if rec.Watermark.IsZero() {
			return nil, fmt.Errorf("watermark record without watermark: %q", string(line))
		}
	case recordCheckpoint:
		if rec.ID == "" {
			return nil, fmt.Errorf("checkpoint record without id: %q", string(line))
		}
	case recordPunctuation, recordTick:
	default:
		return nil, fmt.Errorf("unknown record type %q", rec.Type)
	}
	return rec, nil
}

func (r *inputRecord) tuple() window.Tuple {
	return window.Tuple{Keys: r.Keys, EventTime: r.EventTime.Time, Payload: []byte(r.Payload)}
}

type eventLine struct {
	Event       string       `json:"event"`
	Window      string       `json:"window"`
	Partition   string       `json:"partition,omitempty"`
	Watermark   *time.Time   `json:"watermark,omitempty"`
	BucketStart *time.Time   `json:"bucketStart,omitempty"`
	BucketEnd   *time.Time   `json:"bucketEnd,omitempty"`
	Tuple       *recordLine  `json:"tuple,omitempty"`
	Records     []recordLine `json:"records,omitempty"`
}

type recordLine struct {
	Seq       uint64          `json:"seq"`
	Keys      []string        `json:"keys"`
	EventTime *time.Time      `json:"eventTime,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newRecordLine(seq uint64, t window.Tuple) recordLine {
	rl := recordLine{Seq: seq, Keys: t.Keys, EventTime: optionalTime(t.EventTime)}
	if json.Valid(t.Payload) {
		rl.Payload = json.RawMessage(t.Payload)
	}
	return rl
}

func newEventLine(e *window.Event) eventLine {
	line := eventLine{
		Event:       e.Type.String(),
		Partition:   e.PartitionKey,
		BucketStart: optionalTime(e.BucketStart),
		BucketEnd:   optionalTime(e.BucketEnd),
	}
	if e.Window != nil {
		line.Window = e.Window.Name()
	}
	if !e.Watermark.IsInitial() && !e.Watermark.IsInactive() {
		line.Watermark = optionalTime(time.Time(e.Watermark))
	}
	if e.Tuple != nil {
		rl := newRecordLine(0, *e.Tuple)
		line.Tuple = &rl
	}
	for _, r := range e.Records {
		line.Records = append(line.Records, newRecordLine(r.Seq, r.Tuple))
	}
	return line
}

// eventPrinter writes every window event as a JSON line.
type eventPrinter struct {
	sync.Mutex
	out    io.Writer
	events int
}

func (p *eventPrinter) Handle(_ context.Context, e *window.Event) error {
	b, err := json.Marshal(newEventLine(e))
	if err != nil {
		return err
	}
	p.Lock()
	defer p.Unlock()
	p.events++
	_, err = fmt.Fprintln(p.out, string(b))
	return err
}

func (p *eventPrinter) options() []window.Option {
	opts := make([]window.Option, 0, len(window.EventTypes))
	for _, t := range window.EventTypes {
		opts = append(opts, window.WithHandler(t, p))
	}
	return opts
}
