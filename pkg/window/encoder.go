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
	"hash/crc32"
	"time"
)

const (
	_IEEE = 0xedb88320
	// stateMagic marks the start of an encoded window state.
	stateMagic   uint32 = 0x6e777374
	stateVersion uint16 = 2
)

// stateHeaderPreamble is the header of the window state.
type stateHeaderPreamble struct {
	Magic          uint32
	Version        uint16
	WindowType     int8
	EvictionKind   int8
	WatermarkS     int64
	WatermarkNs    int32
	NextSeq        uint64
	NextPartSeq    uint64
	PartitionCount uint32
}

// partitionHeaderPreamble is the fixed part of a partition frame, followed by the key and the records.
type partitionHeaderPreamble struct {
	KeyLen        int32
	CreatedSeq    uint64
	LastTouchedS  int64
	LastTouchedNs int32
	TouchSeq      uint64
	SinceTrigger  int64
	HasTriggerRef bool
	TriggerRef    float64
	LastTriggerS  int64
	LastTriggerNs int32
	InitialFull   bool
	OpenedAtS     int64
	OpenedAtNs    int32
	RecordCount   uint32
}

// recordHeaderPreamble is the fixed part of a record, followed by the keys and the payload.
type recordHeaderPreamble struct {
	Seq          uint64
	InsertedAtS  int64
	InsertedAtNs int32
	EventTimeS   int64
	EventTimeNs  int32
	Attribute    float64
	KeyCount     uint32
	PayloadLen   int64
}

// encoder encodes the window state. The state ends with the CRC32 of everything before it.
type encoder struct{}

func newEncoder() *encoder {
	return &encoder{}
}

func splitTime(t time.Time) (int64, int32) {
	return t.Unix(), int32(t.Nanosecond())
}

func (e *encoder) encodeState(w *Window) ([]byte, error) {
	buf := new(bytes.Buffer)
	hp := stateHeaderPreamble{
		Magic:          stateMagic,
		Version:        stateVersion,
		WindowType:     int8(w.cfg.Type),
		EvictionKind:   int8(w.cfg.Eviction.Kind()),
		NextSeq:        w.nextSeq,
		NextPartSeq:    w.nextPartSeq,
		PartitionCount: uint32(len(w.order)),
	}
	hp.WatermarkS, hp.WatermarkNs = splitTime(time.Time(w.watermark))
	if err := binary.Write(buf, binary.LittleEndian, hp); err != nil {
		return nil, err
	}
	for _, key := range w.order {
		if err := e.encodePartition(buf, w.partitions[key]); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, calculateChecksum(buf.Bytes())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *encoder) encodePartition(buf *bytes.Buffer, p *Partition) error {
	ph := partitionHeaderPreamble{
		KeyLen:        int32(len(p.key)),
		CreatedSeq:    p.createdSeq,
		TouchSeq:      p.touchSeq,
		SinceTrigger:  int64(p.sinceTrigger),
		HasTriggerRef: p.hasTriggerRef,
		TriggerRef:    p.triggerRef,
		InitialFull:   p.initialFull,
		RecordCount:   uint32(len(p.records)),
	}
	ph.LastTouchedS, ph.LastTouchedNs = splitTime(p.lastTouched)
	ph.LastTriggerS, ph.LastTriggerNs = splitTime(p.lastTrigger)
	ph.OpenedAtS, ph.OpenedAtNs = splitTime(p.openedAt)
	if err := binary.Write(buf, binary.LittleEndian, ph); err != nil {
		return err
	}
	if _, err := buf.WriteString(p.key); err != nil {
		return err
	}
	for _, r := range p.records {
		if err := e.encodeRecord(buf, r); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeRecord(buf *bytes.Buffer, r *Record) error {
	rh := recordHeaderPreamble{
		Seq:        r.Seq,
		Attribute:  r.Attribute,
		KeyCount:   uint32(len(r.Keys)),
		PayloadLen: int64(len(r.Payload)),
	}
	rh.InsertedAtS, rh.InsertedAtNs = splitTime(r.InsertedAt)
	rh.EventTimeS, rh.EventTimeNs = splitTime(r.EventTime)
	if err := binary.Write(buf, binary.LittleEndian, rh); err != nil {
		return err
	}
	for _, k := range r.Keys {
		if err := binary.Write(buf, binary.LittleEndian, int32(len(k))); err != nil {
			return err
		}
		if _, err := buf.WriteString(k); err != nil {
			return err
		}
	}
	_, err := buf.Write(r.Payload)
	return err
}

func calculateChecksum(data []byte) uint32 {
	crc32q := crc32.MakeTable(_IEEE)
	return crc32.Checksum(data, crc32q)
}
