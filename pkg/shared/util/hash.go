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

package util

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// KeyHash returns a stable, store-safe name for an arbitrary key. Partition keys and operator names
// may contain characters that are not accepted by every KV backend (e.g. JetStream restricts keys to
// [-/_=.a-zA-Z0-9]), so the keys are hashed before use.
func KeyHash(key string) string {
	h1, h2 := murmur3.Sum128([]byte(key))
	return fmt.Sprintf("%016x%016x", h1, h2)
}
