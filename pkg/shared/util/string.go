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
	"crypto/rand"
	"math/big"
)

const lowerCaseAlphanumerics = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomLowerCaseString returns a random string of lower case letters and digits, usable as a bucket or stream
// name.
func RandomLowerCaseString(length int) string {
	size := big.NewInt(int64(len(lowerCaseAlphanumerics)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(err)
		}
		out[i] = lowerCaseAlphanumerics[n.Int64()]
	}
	return string(out)
}

// StringSliceContains reports whether str is in list.
func StringSliceContains(list []string, str string) bool {
	for _, s := range list {
		if s == str {
			return true
		}
	}
	return false
}
