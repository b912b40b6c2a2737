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
	"errors"
	"fmt"

	"github.com/tomoncle/bedrock/expression"
)

var (
	ErrNilSpecification = errors.New("specification: nil specification")
	ErrNilCandidate     = errors.New("specification: nil candidate")
	ErrOutOfRange       = errors.New("specification: value out of range")
	ErrEmptyPath        = errors.New("specification: empty path")
)

// Specification is one query concern over T: a *Filter, *Sort, *Paging or
// *Include. The repository picks the pipeline stage by concrete type.
type Specification[T any] interface {
	fmt.Stringer
	isSpecification()
}

// Direction orders a sort key.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Sort orders by either a column name or a selector. Exactly one is set.
type Sort[T any] struct {
	column    string
	selector  *expression.Lambda
	direction Direction
}

// SortByColumn sorts by the Go field name or column name of T.
func SortByColumn[T any](column string, direction Direction) (*Sort[T], error) {
	if column == "" {
		return nil, ErrEmptyPath
	}
	return &Sort[T]{column: column, direction: direction}, nil
}

// SortBy sorts by a selector such as expression.Selector[T]("Message").
func SortBy[T any](selector *expression.Lambda, direction Direction) (*Sort[T], error) {
	if err := expression.CheckUnary[T](selector); err != nil {
		return nil, err
	}
	return &Sort[T]{selector: selector, direction: direction}, nil
}

// Asc and Desc are shorthands for SortByColumn that panic on an empty column.
func Asc[T any](column string) *Sort[T]  { return mustSort(SortByColumn[T](column, Ascending)) }
func Desc[T any](column string) *Sort[T] { return mustSort(SortByColumn[T](column, Descending)) }

func mustSort[T any](s *Sort[T], err error) *Sort[T] {
	if err != nil {
		panic(err)
	}
	return s
}

// Column returns the column name, or "" when sorting by selector.
func (s *Sort[T]) Column() string { return s.column }

// Selector returns the key selector, or nil when sorting by column.
func (s *Sort[T]) Selector() *expression.Lambda { return s.selector }

func (s *Sort[T]) Direction() Direction { return s.direction }

func (s *Sort[T]) isSpecification() {}

func (s *Sort[T]) String() string {
	if s.selector != nil {
		return "sort " + s.selector.String() + " " + s.direction.String()
	}
	return "sort " + s.column + " " + s.direction.String()
}

const (
	DefaultPageIndex = 0
	DefaultPageSize  = 10
)

// Paging selects a zero based page window.
type Paging[T any] struct {
	pageIndex int
	pageSize  int
}

func NewPaging[T any](pageIndex, pageSize int) (*Paging[T], error) {
	if pageIndex < 0 {
		return nil, fmt.Errorf("%w: page index %d must be >= 0", ErrOutOfRange, pageIndex)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size %d must be > 0", ErrOutOfRange, pageSize)
	}
	return &Paging[T]{pageIndex: pageIndex, pageSize: pageSize}, nil
}

// DefaultPaging is the first page of DefaultPageSize items.
func DefaultPaging[T any]() *Paging[T] {
	return &Paging[T]{pageIndex: DefaultPageIndex, pageSize: DefaultPageSize}
}

func (p *Paging[T]) PageIndex() int { return p.pageIndex }
func (p *Paging[T]) PageSize() int  { return p.pageSize }

// Skip is the number of rows before the page.
func (p *Paging[T]) Skip() int { return p.pageIndex * p.pageSize }

func (p *Paging[T]) isSpecification() {}

func (p *Paging[T]) String() string {
	return fmt.Sprintf("page %d size %d", p.pageIndex, p.pageSize)
}

// Include eager loads one navigation path, e.g. "Author" or "Author.Profile".
type Include[T any] struct {
	path string
}

// IncludeBy derives the path from a selector lambda.
func IncludeBy[T any](selector *expression.Lambda) (*Include[T], error) {
	if err := expression.CheckUnary[T](selector); err != nil {
		return nil, err
	}
	path, err := expression.MemberPath(selector)
	if err != nil {
		return nil, err
	}
	return &Include[T]{path: path}, nil
}

func IncludePath[T any](path string) (*Include[T], error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &Include[T]{path: path}, nil
}

func (i *Include[T]) Path() string { return i.path }

func (i *Include[T]) isSpecification() {}

func (i *Include[T]) String() string { return "include " + i.path }
