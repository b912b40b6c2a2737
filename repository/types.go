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

package repository

import (
	"context"
	"errors"

	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/specification"
	"github.com/tomoncle/bedrock/types"
	"github.com/tomoncle/bedrock/uow"
)

var (
	ErrNilEntity                = errors.New("repository: nil entity")
	ErrClosed                   = errors.New("repository: closed")
	ErrPagingWithoutSort        = errors.New("repository: paging requires at least one sort specification")
	ErrMultiplePaging           = errors.New("repository: more than one paging specification")
	ErrMultipleResults          = errors.New("repository: sequence contains more than one element")
	ErrUnknownProperty          = errors.New("repository: unknown property")
	ErrUnsupportedSpecification = errors.New("repository: unsupported specification")
)

// Result carries the outcome of an asynchronous query.
type Result[V any] struct {
	Value V
	Err   error
}

// ItemSet operates on the tracked entity set. Changes reach the store when
// the outermost unit of work commits, and every call needs an open unit of
// work on the DataContext.
type ItemSet[T any] interface {
	Add(items ...*T) error
	Remove(items ...*T) error
	Attach(items ...*T) error
	Update(items ...*T) error
	Upsert(opts uow.UpsertOptions, items ...*T) error
}

// Query evaluates specifications against the store. Include, filter, sort
// and paging specifications are applied in that order regardless of their
// position in specs.
type Query[T any] interface {
	Get(ctx context.Context, specs ...specification.Specification[T]) (*T, error)
	GetElements(ctx context.Context, specs ...specification.Specification[T]) ([]*T, error)
	GetElementCount(ctx context.Context, specs ...specification.Specification[T]) (int, error)
	Any(ctx context.Context, specs ...specification.Specification[T]) (bool, error)
	Page(ctx context.Context, specs ...specification.Specification[T]) (*types.Pagination[T], error)
	Find(ctx context.Context, filters ...*specification.Filter[T]) (*T, error)
}

// AsyncQuery runs queries on a goroutine. The DataContext must not be used
// by the caller until the result has been received.
type AsyncQuery[T any] interface {
	GetAsync(ctx context.Context, specs ...specification.Specification[T]) <-chan Result[*T]
	GetElementsAsync(ctx context.Context, specs ...specification.Specification[T]) <-chan Result[[]*T]
}

// Repository is the per-entity facade bound to one DataContext. Close
// releases it from the DataContext's repository counter.
type Repository[T any] interface {
	ItemSet[T]
	Query[T]
	AsyncQuery[T]
	Context() *uow.DataContext
	NewSelect() *bun.SelectQuery
	Close() error
}
