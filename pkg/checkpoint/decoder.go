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
	"fmt"
	"io"
)

// Decode decodes a checkpoint blob produced by Encode.
func Decode(blob []byte) (map[string][]byte, error) {
	buf := bytes.NewReader(blob)
	var hp = new(blobHeaderPreamble)
	if err := binary.Read(buf, binary.LittleEndian, hp); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint header: %w", err)
	}
	if hp.Magic != blobMagic {
		return nil, fmt.Errorf("not a checkpoint blob, magic %x", hp.Magic)
	}
	if hp.Version != blobVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", hp.Version)
	}

	entries := make(map[string][]byte, hp.Count)
	for i := uint32(0); i < hp.Count; i++ {
		k, v, err := decodeEntry(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint entry %d: %w", i, err)
		}
		entries[k] = v
	}
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after the last checkpoint entry", buf.Len())
	}
	return entries, nil
}

func decodeEntry(buf *bytes.Reader) (string, []byte, error) {
	var eh = new(entryHeaderPreamble)
	if err := binary.Read(buf, binary.LittleEndian, eh); err != nil {
		return "", nil, err
	}
	if eh.KeyLen < 0 || eh.ValueLen < 0 || int64(eh.KeyLen)+eh.ValueLen > int64(buf.Len()) {
		return "", nil, io.ErrUnexpectedEOF
	}
	key := make([]byte, eh.KeyLen)
	if _, err := io.ReadFull(buf, key); err != nil {
		return "", nil, err
	}
	value := make([]byte, eh.ValueLen)
	if _, err := io.ReadFull(buf, value); err != nil {
		return "", nil, err
	}
	if calculateChecksum(key, value) != eh.Checksum {
		return "", nil, errChecksumMismatch
	}
	return string(key), value, nil
}
