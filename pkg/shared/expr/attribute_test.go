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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_EvalFloat(t *testing.T) {
	e, err := NewEvaluator(4)
	require.NoError(t, err)

	t.Run("test a simple attribute", func(t *testing.T) {
		f, err := e.EvalFloat(`payload.price`, []byte(`{"price": 12.5}`))
		assert.NoError(t, err)
		assert.Equal(t, 12.5, f)
	})

	t.Run("test nested attribute", func(t *testing.T) {
		f, err := e.EvalFloat(`payload.a.b`, []byte(`{"a": {"b": 3}}`))
		assert.NoError(t, err)
		assert.Equal(t, 3.0, f)
	})

	t.Run("test string attribute", func(t *testing.T) {
		f, err := e.EvalFloat(`payload.price`, []byte(`{"price": "7.25"}`))
		assert.NoError(t, err)
		assert.Equal(t, 7.25, f)
	})

	t.Run("test raw payload", func(t *testing.T) {
		f, err := e.EvalFloat(`float(sprig.trim(raw))`, []byte(" 42 "))
		assert.NoError(t, err)
		assert.Equal(t, 42.0, f)
	})

	t.Run("test json of raw", func(t *testing.T) {
		f, err := e.EvalFloat(`json(raw).n * 2`, []byte(`{"n": 2}`))
		assert.NoError(t, err)
		assert.Equal(t, 4.0, f)
	})

	t.Run("test not a number", func(t *testing.T) {
		_, err := e.EvalFloat(`payload.name`, []byte(`{"name": "abc"}`))
		assert.Error(t, err)
	})

	t.Run("test invalid expression", func(t *testing.T) {
		_, err := e.EvalFloat(`ab\na`, []byte(`{"a": "b"}`))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unable to compile expression")
	})

	t.Run("test conversion panic is returned as error", func(t *testing.T) {
		_, err := e.EvalFloat(`float(raw)`, []byte("abc"))
		assert.Error(t, err)
	})
}

func TestEvaluator_Cache(t *testing.T) {
	e, err := NewEvaluator(0)
	require.NoError(t, err)
	p1, err := e.Compile(`payload.x`)
	require.NoError(t, err)
	p2, err := e.Compile(`payload.x`)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, e.programs.Len())
}

func TestEvaluator_EvalBool(t *testing.T) {
	e, err := NewEvaluator(4)
	require.NoError(t, err)
	b, err := e.EvalBool(`payload.a > 1`, []byte(`{"a": 2}`))
	assert.NoError(t, err)
	assert.True(t, b)
	_, err = e.EvalBool(`payload.a`, []byte(`{"a": 2}`))
	assert.Error(t, err)
}

func Test_eval_json(t *testing.T) {
	t.Run("test nil", func(t *testing.T) {
		m := _json(nil)
		assert.Nil(t, m)
	})

	t.Run("test invalid json bytes", func(t *testing.T) {
		assert.Panics(t, func() { _json([]byte("abc")) })
	})

	t.Run("test valid string", func(t *testing.T) {
		m := _json(`{"a": "b"}`)
		assert.Equal(t, "b", m["a"])
	})

	t.Run("test default panic", func(t *testing.T) {
		assert.Panics(t, func() { _json(222) })
	})
}

func Test_eval_conversions(t *testing.T) {
	assert.Equal(t, 3, _int("3"))
	assert.Equal(t, 2.5, _float("2.5"))
	assert.Panics(t, func() { _int("x") })
	assert.Equal(t, "", _string(nil))
	assert.Equal(t, "ab", _string([]byte("ab")))
	assert.Equal(t, "1", _string(1))
}
