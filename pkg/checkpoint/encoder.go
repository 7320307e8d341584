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

package checkpoint

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"
)

const (
	_IEEE = 0xedb88320
	// blobMagic marks the start of a checkpoint blob.
	blobMagic   uint32 = 0x6e776370
	blobVersion uint16 = 1
)

// blobHeaderPreamble is the header of an encoded checkpoint.
type blobHeaderPreamble struct {
	Magic   uint32
	Version uint16
	Count   uint32
}

// entryHeaderPreamble is the header of every key/value frame.
type entryHeaderPreamble struct {
	KeyLen   int32
	ValueLen int64
	Checksum uint32
}

// Encode encodes the entries to the checkpoint blob format. Entries are written in key order.
func Encode(entries map[string][]byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hp := blobHeaderPreamble{Magic: blobMagic, Version: blobVersion, Count: uint32(len(keys))}
	if err := binary.Write(buf, binary.LittleEndian, hp); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := encodeEntry(buf, k, entries[k]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeEntry(buf *bytes.Buffer, key string, value []byte) error {
	eh := entryHeaderPreamble{
		KeyLen:   int32(len(key)),
		ValueLen: int64(len(value)),
		Checksum: calculateChecksum([]byte(key), value),
	}
	if err := binary.Write(buf, binary.LittleEndian, eh); err != nil {
		return err
	}
	if _, err := buf.WriteString(key); err != nil {
		return err
	}
	_, err := buf.Write(value)
	return err
}

func calculateChecksum(data ...[]byte) uint32 {
	crc32q := crc32.MakeTable(_IEEE)
	var sum uint32
	for _, d := range data {
		sum = crc32.Update(sum, crc32q, d)
	}
	return sum
}
