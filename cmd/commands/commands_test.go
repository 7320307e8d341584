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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func countEvents(t *testing.T, out string) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if l == "" {
			continue
		}
		var e eventLine
		require.NoError(t, json.Unmarshal([]byte(l), &e), l)
		counts[e.Event]++
	}
	return counts
}

// summaryField returns the value of a line of the inspect summary.
func summaryField(out, label string) string {
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, label) {
			return strings.TrimSpace(strings.TrimPrefix(l, label))
		}
	}
	return ""
}

func TestRootCommand(t *testing.T) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"--help"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Available Commands")
	assert.Contains(t, out.String(), "simulate")
	assert.Contains(t, out.String(), "inspect")
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantErr bool
	}{
		{name: "tuple by default", line: `{"keys":["a"],"payload":{"price":1}}`, want: recordTuple},
		{name: "watermark", line: `{"type":"watermark","watermark":"2022-01-01T00:00:00Z"}`, want: recordWatermark},
		{name: "punctuation", line: `{"type":"punctuation"}`, want: recordPunctuation},
		{name: "tick", line: `{"type":"tick","time":"2022-01-01T00:00:00Z"}`, want: recordTick},
		{name: "checkpoint", line: `{"type":"checkpoint","id":"c1"}`, want: recordCheckpoint},
		{name: "tuple without keys", line: `{"payload":1}`, wantErr: true},
		{name: "watermark without time", line: `{"type":"watermark"}`, wantErr: true},
		{name: "checkpoint without id", line: `{"type":"checkpoint"}`, wantErr: true},
		{name: "unknown type", line: `{"type":"barrier"}`, wantErr: true},
		{name: "not json", line: `keys=a`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := parseRecord([]byte(tt.line))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Type)
		})
	}

	rec, err := parseRecord([]byte(`{"keys":["a","b"],"eventTime":"2022-01-01T00:00:10Z","payload":{"price":1}}`))
	require.NoError(t, err)
	tuple := rec.tuple()
	assert.Equal(t, []string{"a", "b"}, tuple.Keys)
	assert.Equal(t, int64(1640995210), tuple.EventTime.Unix())
	assert.JSONEq(t, `{"price":1}`, string(tuple.Payload))

	rec, err = parseRecord([]byte(`{"keys":["a"],"eventTime":1640995210500}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1640995210500), rec.tuple().EventTime.UnixMilli())

	rec, err = parseRecord([]byte(`{"type":"watermark","watermark":"2022-01-01 00:00:10"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1640995210), rec.Watermark.Unix())

	_, err = parseRecord([]byte(`{"type":"watermark","watermark":"not a time"}`))
	assert.Error(t, err)
}

func TestSimulate_Tumbling(t *testing.T) {
	conf := writeFile(t, "config.yaml", `
window:
  name: batches
  type: tumbling
  eviction:
    kind: punctuation
`)
	input := writeFile(t, "input.jsonl", `{"keys":["a"],"payload":{"price":1}}
{"keys":["a"],"payload":{"price":2}}

{"keys":["b"],"payload":{"price":3}}
{"type":"punctuation"}
{"type":"punctuation"}
`)
	out, err := execute(t, NewSimulateCommand(), "--config", conf, "--input", input)
	require.NoError(t, err)
	counts := countEvents(t, out)
	assert.Equal(t, 3, counts["BeforeTupleInsertion"])
	assert.Equal(t, 3, counts["AfterTupleInsertion"])
	assert.Equal(t, 2, counts["BeforeWindowFlush"])
	assert.Equal(t, 2, counts["AfterWindowFlush"])
	assert.Equal(t, 1, counts["EmptyWindowPunct"])

	var first eventLine
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, "BeforeWindowFlush") {
			require.NoError(t, json.Unmarshal([]byte(l), &first))
			break
		}
	}
	assert.Equal(t, "batches", first.Window)
	assert.Equal(t, "a", first.Partition)
	require.Len(t, first.Records, 2)
	assert.JSONEq(t, `{"price":1}`, string(first.Records[0].Payload))
}

func TestSimulate_InvalidInput(t *testing.T) {
	conf := writeFile(t, "config.yaml", "window:\n  eviction:\n    kind: count\n    count: 2\n")
	input := writeFile(t, "input.jsonl", "{\"keys\":[\"a\"]}\n{\"type\":\"barrier\"}\n")
	_, err := execute(t, NewSimulateCommand(), "--config", conf, "--input", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestSimulate_CheckpointWithoutStore(t *testing.T) {
	conf := writeFile(t, "config.yaml", "window:\n  eviction:\n    kind: count\n    count: 2\n")
	input := writeFile(t, "input.jsonl", "{\"keys\":[\"a\"]}\n")
	_, err := execute(t, NewSimulateCommand(), "--config", conf, "--input", input, "--checkpoint-id", "c1")
	assert.Error(t, err)
}

func TestSimulate_DerivedWatermarks(t *testing.T) {
	conf := writeFile(t, "config.yaml", `
window:
  type: tumbling
  eviction:
    kind: eventTime
    interval: 10s
watermark:
  lag: 1s
`)
	input := writeFile(t, "input.jsonl", `{"keys":["a"],"eventTime":"2022-01-01T00:00:01Z"}
{"keys":["a"],"eventTime":"2022-01-01T00:00:05Z"}
{"keys":["a"],"eventTime":"2022-01-01T00:00:12Z"}
`)
	out, err := execute(t, NewSimulateCommand(), "--config", conf, "--input", input, "--derive-watermarks")
	require.NoError(t, err)
	counts := countEvents(t, out)
	assert.Equal(t, 3, counts["AfterTupleInsertion"])
	// the third tuple moves the watermark to 00:00:11 which closes the first bucket
	assert.Equal(t, 1, counts["BeforeWindowFlush"])
}

func TestSimulate_CheckpointRestoreInspect(t *testing.T) {
	dir := t.TempDir()
	conf := writeFile(t, "config.yaml", `
operator:
  name: prices
window:
  name: last3
  type: sliding
  eviction:
    kind: count
    count: 3
checkpoint:
  store:
    kind: fs
    dir: `+dir+`
`)
	input := writeFile(t, "input.jsonl", `{"keys":["a"],"payload":1}
{"keys":["a"],"payload":2}
{"keys":["a"],"payload":3}
{"keys":["a"],"payload":4}
{"keys":["b"],"payload":5}
`)
	out, err := execute(t, NewSimulateCommand(), "--config", conf, "--input", input, "--checkpoint-id", "c1")
	require.NoError(t, err)
	counts := countEvents(t, out)
	assert.Equal(t, 5, counts["AfterTupleInsertion"])
	assert.Equal(t, 1, counts["AfterTupleEviction"])

	out, err = execute(t, NewInspectCommand(), "--config", conf, "--verbose")
	require.NoError(t, err)
	assert.Equal(t, "c1", summaryField(out, "Checkpoint:"))
	assert.Equal(t, "last3", summaryField(out, "Window:"))
	assert.Equal(t, "2", summaryField(out, "Partitions:"))
	assert.Equal(t, "4", summaryField(out, "Tuples:"))
	assert.Contains(t, summaryField(out, "Partition size:"), "max 3")
	assert.Contains(t, out, "KEY")

	more := writeFile(t, "more.jsonl", "{\"keys\":[\"a\"],\"payload\":6}\n{\"type\":\"checkpoint\",\"id\":\"c2\"}\n")
	out, err = execute(t, NewSimulateCommand(), "--config", conf, "--input", more, "--restore")
	require.NoError(t, err)
	counts = countEvents(t, out)
	assert.Equal(t, 1, counts["AfterTupleEviction"])
	assert.Zero(t, counts["WindowInitialFull"])

	out, err = execute(t, NewInspectCommand(), "--config", conf, "--id", "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", summaryField(out, "Checkpoint:"))
	assert.Equal(t, "4", summaryField(out, "Tuples:"))

	out, err = execute(t, NewInspectCommand(), "--config", conf, "--id", "c2", "--output", "json")
	require.NoError(t, err)
	var view summaryView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "last3", view.Window)
	assert.Equal(t, 4, view.Tuples)
	require.Len(t, view.Partitions, 2)
	assert.Equal(t, "a", view.Partitions[0].Key)
	assert.Equal(t, 3, view.Partitions[0].Records)
	assert.Equal(t, 3.0, view.PartitionSize.Max)

	out, err = execute(t, NewInspectCommand(), "--config", conf, "--id", "c2", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "window: last3")
	assert.Contains(t, out, "tuples: 4")

	_, err = execute(t, NewInspectCommand(), "--config", conf, "--id", "c2", "-o", "xml")
	assert.Error(t, err)

	_, err = execute(t, NewInspectCommand(), "--config", conf, "--id", "missing")
	assert.Error(t, err)
}

func TestInspect_NoStore(t *testing.T) {
	conf := writeFile(t, "config.yaml", "window:\n  eviction:\n    kind: count\n    count: 2\n")
	_, err := execute(t, NewInspectCommand(), "--config", conf)
	assert.Error(t, err)
}
