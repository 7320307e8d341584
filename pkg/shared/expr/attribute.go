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

// Package expr evaluates expressions over tuple payloads. It is used to extract the numeric attribute of a Delta
// window policy, e.g. `payload.price` or `float(sprig.trim(raw))`.
package expr

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cast"
)

// DefaultCacheSize is the number of compiled programs kept by an Evaluator.
const DefaultCacheSize = 128

// Evaluator compiles expressions once and evaluates them against payloads.
type Evaluator struct {
	programs *lru.Cache[string, *vm.Program]
}

// NewEvaluator returns an Evaluator which caches up to size compiled programs.
func NewEvaluator(size int) (*Evaluator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *vm.Program](size)
	if err != nil {
		return nil, err
	}
	return &Evaluator{programs: c}, nil
}

// Compile compiles the expression, or returns the cached program.
func (e *Evaluator) Compile(expression string) (*vm.Program, error) {
	if p, ok := e.programs.Get(expression); ok {
		return p, nil
	}
	program, err := expr.Compile(expression, expr.Env(newEnv(nil)))
	if err != nil {
		return nil, fmt.Errorf("unable to compile expression '%s': %s", expression, err)
	}
	e.programs.Add(expression, program)
	return program, nil
}

// Eval runs the expression against the payload.
func (e *Evaluator) Eval(expression string, msg []byte) (result interface{}, err error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	// the helper functions panic on conversion failures
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unable to execute expression '%s': %v", expression, r)
		}
	}()
	result, err = expr.Run(program, newEnv(msg))
	if err != nil {
		return nil, fmt.Errorf("unable to execute compiled program %v", err)
	}
	return result, nil
}

// EvalFloat runs the expression against the payload and converts the result to a float64.
func (e *Evaluator) EvalFloat(expression string, msg []byte) (float64, error) {
	result, err := e.Eval(expression, msg)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(result)
	if err != nil {
		return 0, fmt.Errorf("expression '%s' did not yield a number: %w", expression, err)
	}
	return f, nil
}

// EvalBool runs the expression against the payload and expects a boolean result.
func (e *Evaluator) EvalBool(expression string, msg []byte) (bool, error) {
	result, err := e.Eval(expression, msg)
	if err != nil {
		return false, err
	}
	resultBool, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unable to cast expression result '%v' to bool", result)
	}
	return resultBool, nil
}
