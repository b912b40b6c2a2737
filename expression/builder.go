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

import (
	"fmt"
	"reflect"
)

// Builder accumulates predicates over T. The first term is kept as given and
// every later term is composed onto it. A Builder is not safe for concurrent use.
type Builder[T any] struct {
	expr *Lambda
}

func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// NewBuilderFrom starts a Builder from expr.
func NewBuilderFrom[T any](expr *Lambda) (*Builder[T], error) {
	if err := CheckUnary[T](expr); err != nil {
		return nil, err
	}
	return &Builder[T]{expr: expr}, nil
}

func (b *Builder[T]) And(expr *Lambda) error     { return b.add(expr, And) }
func (b *Builder[T]) AndAlso(expr *Lambda) error { return b.add(expr, AndAlso) }
func (b *Builder[T]) Or(expr *Lambda) error      { return b.add(expr, Or) }
func (b *Builder[T]) OrElse(expr *Lambda) error  { return b.add(expr, OrElse) }

// Not negates the accumulated predicate. It is a no-op on an empty Builder.
func (b *Builder[T]) Not() error {
	if b.expr == nil {
		return nil
	}
	negated, err := Not(b.expr)
	if err != nil {
		return err
	}
	b.expr = negated
	return nil
}

// Expression returns the accumulated predicate, or nil when empty.
func (b *Builder[T]) Expression() *Lambda {
	return b.expr
}

func (b *Builder[T]) add(expr *Lambda, compose func(first, second *Lambda) (*Lambda, error)) error {
	if err := CheckUnary[T](expr); err != nil {
		return err
	}
	if b.expr == nil {
		b.expr = expr
		return nil
	}
	composed, err := compose(b.expr, expr)
	if err != nil {
		return err
	}
	b.expr = composed
	return nil
}

// CheckUnary verifies that expr is a single-parameter lambda over T.
func CheckUnary[T any](expr *Lambda) error {
	if expr == nil {
		return ErrNilExpression
	}
	if len(expr.params) != 1 {
		return fmt.Errorf("%w: want 1 parameter, got %d", ErrParameterCount, len(expr.params))
	}
	want := reflect.TypeOf((*T)(nil)).Elem()
	if got := expr.params[0].typ; got != want {
		return fmt.Errorf("%w: got %v, want %v", ErrParameterType, got, want)
	}
	return nil
}
