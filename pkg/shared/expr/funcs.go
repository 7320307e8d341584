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

package expr

import (
	"fmt"

	"github.com/Masterminds/sprig/v3"
	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

var sprigFuncMap = sprig.GenericFuncMap()

const (
	// root is the decoded JSON object of the payload, empty when the payload is not a JSON object.
	root = "payload"
	// raw is the payload as a string.
	raw = "raw"
)

// newEnv returns the evaluation environment for a payload.
func newEnv(msg []byte) map[string]interface{} {
	decoded := make(map[string]interface{})
	if len(msg) > 0 {
		// a payload that is not a JSON object is only reachable through raw
		_ = json.Unmarshal(msg, &decoded)
	}
	return map[string]interface{}{
		root:     decoded,
		raw:      string(msg),
		"sprig":  sprigFuncMap,
		"json":   _json,
		"float":  _float,
		"int":    _int,
		"string": _string,
	}
}

func _float(v interface{}) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		panic(fmt.Errorf("cannot convert %q to float: %v", v, err))
	}
	return f
}

func _int(v interface{}) int {
	i, err := cast.ToIntE(v)
	if err != nil {
		panic(fmt.Errorf("cannot convert %q to int: %v", v, err))
	}
	return i
}

func _string(v interface{}) string {
	switch w := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(w)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func _json(v interface{}) map[string]interface{} {
	x := make(map[string]interface{})
	switch w := v.(type) {
	case nil:
		return nil
	case []byte:
		if err := json.Unmarshal(w, &x); err != nil {
			panic(fmt.Errorf("cannot convert %q to object: %v", v, err))
		}
		return x
	case string:
		if err := json.Unmarshal([]byte(w), &x); err != nil {
			panic(fmt.Errorf("cannot convert %q to object: %v", v, err))
		}
		return x
	default:
		panic("unknown type")
	}
}
