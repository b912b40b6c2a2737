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

package specification

import (
	"reflect"
	"sync"

	"github.com/tomoncle/bedrock/expression"
)

// Filter wraps a predicate over T. A Filter is immutable: And, Or and Not
// return new filters. It is safe to share between goroutines.
type Filter[T any] struct {
	predicate *expression.Lambda

	once     sync.Once
	compiled expression.CompiledPredicate
	compErr  error
}

// NewFilter validates predicate as a unary lambda over T.
func NewFilter[T any](predicate *expression.Lambda) (*Filter[T], error) {
	if err := expression.CheckUnary[T](predicate); err != nil {
		return nil, err
	}
	return &Filter[T]{predicate: predicate}, nil
}

// MustFilter is NewFilter that panics on error.
func MustFilter[T any](predicate *expression.Lambda) *Filter[T] {
	f, err := NewFilter[T](predicate)
	if err != nil {
		panic(err)
	}
	return f
}

// Where builds a Filter from a predicate body over a parameter named x.
func Where[T any](build func(x *expression.Parameter) expression.Node) *Filter[T] {
	return MustFilter[T](expression.Predicate[T](build))
}

func (f *Filter[T]) Expression() *expression.Lambda {
	if f == nil {
		return nil
	}
	return f.predicate
}

func (f *Filter[T]) String() string {
	if f.empty() {
		return "<nil>"
	}
	return f.predicate.String()
}

// empty reports a nil or zero Filter, one not built by NewFilter or Where.
func (f *Filter[T]) empty() bool { return f == nil || f.predicate == nil }

func (f *Filter[T]) isSpecification() {}

// And returns a filter satisfied when both f and other are.
func (f *Filter[T]) And(other *Filter[T]) (*Filter[T], error) {
	return f.compose(other, expression.AndAlso)
}

// Or returns a filter satisfied when f or other is.
func (f *Filter[T]) Or(other *Filter[T]) (*Filter[T], error) {
	return f.compose(other, expression.OrElse)
}

// Not returns the negation of f.
func (f *Filter[T]) Not() (*Filter[T], error) {
	if f.empty() {
		return nil, ErrNilSpecification
	}
	negated, err := expression.Not(f.predicate)
	if err != nil {
		return nil, err
	}
	return &Filter[T]{predicate: negated}, nil
}

// MustNot is Not that panics on error.
func (f *Filter[T]) MustNot() *Filter[T] {
	negated, err := f.Not()
	if err != nil {
		panic(err)
	}
	return negated
}

func (f *Filter[T]) compose(other *Filter[T], op func(a, b *expression.Lambda) (*expression.Lambda, error)) (*Filter[T], error) {
	if f.empty() || other.empty() {
		return nil, ErrNilSpecification
	}
	composed, err := op(f.predicate, other.predicate)
	if err != nil {
		return nil, err
	}
	return &Filter[T]{predicate: composed}, nil
}

// IsSatisfiedBy evaluates the predicate against candidate. The predicate is
// compiled on first use and the result is reused afterwards.
func (f *Filter[T]) IsSatisfiedBy(candidate *T) (bool, error) {
	if candidate == nil {
		return false, ErrNilCandidate
	}
	if f.empty() {
		return false, ErrNilSpecification
	}
	f.once.Do(func() {
		f.compiled, f.compErr = expression.Compile(f.predicate)
	})
	if f.compErr != nil {
		return false, f.compErr
	}
	return f.compiled(reflect.ValueOf(candidate))
}
