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

// Package wmb represents the watermark and the published watermark-message-body (WMB) with its corresponding
// encoder and decoder.
package wmb

import (
	"bytes"
	"encoding/binary"
)

// WMB is used in the KV watermark bucket as the value for the given output entity key.
type WMB struct {
	// Idle is set to true when the publishing output is not event-time aware. The Watermark is then the
	// inactive sentinel.
	Idle bool
	// Offset is the monotonically increasing publication sequence of the entity.
	Offset int64
	// Watermark is the published watermark in epoch milliseconds.
	Watermark int64
}

// EncodeToBytes encodes a WMB object into byte array.
func (w WMB) EncodeToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	err := binary.Write(buf, binary.LittleEndian, w)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeToWMB decodes the given byte array into a WMB object.
func DecodeToWMB(b []byte) (WMB, error) {
	var v WMB
	buf := bytes.NewReader(b)
	err := binary.Read(buf, binary.LittleEndian, &v)
	if err != nil {
		return WMB{}, err
	}
	return v, nil
}

// ToWatermark returns the decoded watermark value.
func (w WMB) ToWatermark() Watermark {
	if w.Idle {
		return InactiveWatermark
	}
	return FromUnixMilli(w.Watermark)
}
