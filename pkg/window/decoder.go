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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

var errChecksumMismatch = errors.New("window state checksum not match")

// decodedState is the window state read from a checkpoint.
type decodedState struct {
	header     stateHeaderPreamble
	watermark  wmb.Watermark
	partitions []*Partition
}

// decoder decodes the window state written by encoder.
type decoder struct{}

func newDecoder() *decoder {
	return &decoder{}
}

func joinTime(s int64, ns int32) time.Time {
	return time.Unix(s, int64(ns))
}

func (d *decoder) decodeState(data []byte) (*decodedState, error) {
	if len(data) < 4 {
		return nil, io.ErrUnexpectedEOF
	}
	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if calculateChecksum(body) != sum {
		return nil, errChecksumMismatch
	}
	buf := bytes.NewReader(body)

	var hp stateHeaderPreamble
	if err := binary.Read(buf, binary.LittleEndian, &hp); err != nil {
		return nil, err
	}
	if hp.Magic != stateMagic {
		return nil, fmt.Errorf("not a window state, magic %x", hp.Magic)
	}
	if hp.Version != stateVersion {
		return nil, fmt.Errorf("unsupported window state version %d", hp.Version)
	}
	st := &decodedState{
		header:     hp,
		watermark:  wmb.Watermark(joinTime(hp.WatermarkS, hp.WatermarkNs)),
		partitions: make([]*Partition, 0, hp.PartitionCount),
	}
	for i := uint32(0); i < hp.PartitionCount; i++ {
		p, err := d.decodePartition(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decode partition %d: %w", i, err)
		}
		st.partitions = append(st.partitions, p)
	}
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes in window state", buf.Len())
	}
	return st, nil
}

func (d *decoder) decodePartition(buf *bytes.Reader) (*Partition, error) {
	var ph partitionHeaderPreamble
	if err := binary.Read(buf, binary.LittleEndian, &ph); err != nil {
		return nil, err
	}
	key, err := readString(buf, int64(ph.KeyLen))
	if err != nil {
		return nil, err
	}
	p := &Partition{
		key:           key,
		records:       make([]*Record, 0, ph.RecordCount),
		lastTouched:   joinTime(ph.LastTouchedS, ph.LastTouchedNs),
		touchSeq:      ph.TouchSeq,
		createdSeq:    ph.CreatedSeq,
		sinceTrigger:  int(ph.SinceTrigger),
		hasTriggerRef: ph.HasTriggerRef,
		triggerRef:    ph.TriggerRef,
		lastTrigger:   joinTime(ph.LastTriggerS, ph.LastTriggerNs),
		initialFull:   ph.InitialFull,
		openedAt:      joinTime(ph.OpenedAtS, ph.OpenedAtNs),
	}
	for i := uint32(0); i < ph.RecordCount; i++ {
		r, err := d.decodeRecord(buf)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		p.records = append(p.records, r)
	}
	return p, nil
}

func (d *decoder) decodeRecord(buf *bytes.Reader) (*Record, error) {
	var rh recordHeaderPreamble
	if err := binary.Read(buf, binary.LittleEndian, &rh); err != nil {
		return nil, err
	}
	if int64(rh.KeyCount) > int64(buf.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	keys := make([]string, 0, rh.KeyCount)
	for i := uint32(0); i < rh.KeyCount; i++ {
		var kl int32
		if err := binary.Read(buf, binary.LittleEndian, &kl); err != nil {
			return nil, err
		}
		k, err := readString(buf, int64(kl))
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	payload, err := readBytes(buf, rh.PayloadLen)
	if err != nil {
		return nil, err
	}
	return &Record{
		Tuple: Tuple{
			Keys:      keys,
			EventTime: joinTime(rh.EventTimeS, rh.EventTimeNs),
			Payload:   payload,
		},
		Seq:        rh.Seq,
		InsertedAt: joinTime(rh.InsertedAtS, rh.InsertedAtNs),
		Attribute:  rh.Attribute,
	}, nil
}

func readBytes(buf *bytes.Reader, n int64) ([]byte, error) {
	if n < 0 || n > int64(buf.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(buf, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(buf *bytes.Reader, n int64) (string, error) {
	b, err := readBytes(buf, n)
	return string(b), err
}
