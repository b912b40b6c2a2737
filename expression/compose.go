/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package expression

import "fmt"

// MergeFunc combines two bodies that share a parameter list.
type MergeFunc func(left, right Node) Node

// Merge returns a MergeFunc building a Binary node with op.
func Merge(op Op) MergeFunc {
	return func(left, right Node) Node { return MakeBinary(op, left, right) }
}

// Compose maps parameter i of second onto parameter i of first, then merges
// the two bodies over first's parameters. Neither input is modified.
func Compose(first, second *Lambda, merge MergeFunc) (*Lambda, error) {
	if first == nil || second == nil || merge == nil {
		return nil, ErrNilExpression
	}
	if len(first.params) != len(second.params) {
		return nil, fmt.Errorf("%w: %d != %d", ErrParameterCount, len(first.params), len(second.params))
	}

	m := make(map[*Parameter]*Parameter, len(first.params))
	for i, p := range first.params {
		s := second.params[i]
		if p.typ != s.typ {
			return nil, fmt.Errorf("%w: parameter %d is %v, want %v", ErrParameterType, i, s.typ, p.typ)
		}
		m[s] = p
	}

	body := merge(first.body, ReplaceParameters(m, second.body))
	if body == nil {
		return nil, ErrNilExpression
	}
	return &Lambda{params: first.Params(), body: body}, nil
}

// And composes with the non-short-circuit AND.
func And(first, second *Lambda) (*Lambda, error) {
	return Compose(first, second, Merge(OpAnd))
}

// AndAlso composes with the short-circuit AND.
func AndAlso(first, second *Lambda) (*Lambda, error) {
	return Compose(first, second, Merge(OpAndAlso))
}

// Or composes with the non-short-circuit OR.
func Or(first, second *Lambda) (*Lambda, error) {
	return Compose(first, second, Merge(OpOr))
}

// OrElse composes with the short-circuit OR.
func OrElse(first, second *Lambda) (*Lambda, error) {
	return Compose(first, second, Merge(OpOrElse))
}

// Not negates a unary lambda.
func Not(expr *Lambda) (*Lambda, error) {
	if expr == nil {
		return nil, ErrNilExpression
	}
	if len(expr.params) != 1 {
		return nil, fmt.Errorf("%w: Not needs exactly one parameter, got %d", ErrParameterCount, len(expr.params))
	}
	return &Lambda{params: expr.Params(), body: MakeNot(expr.body)}, nil
}
