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
	"reflect"

	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/specification"
	"github.com/tomoncle/bedrock/types"
	"github.com/tomoncle/bedrock/uow"
)

type baseRepositoryImpl[T any] struct {
	dc     *uow.DataContext
	closed bool
}

// New returns a repository bound to dc and counts it on dc until Close.
func New[T any](dc *uow.DataContext) Repository[T] {
	dc.AcquireRepository()
	return &baseRepositoryImpl[T]{dc: dc}
}

func (r *baseRepositoryImpl[T]) Context() *uow.DataContext { return r.dc }

// NewSelect starts a query on the current connection with T as model.
func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery {
	return r.dc.IDB().NewSelect().Model((*T)(nil))
}

func (r *baseRepositoryImpl[T]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.dc.ReleaseRepository()
	return nil
}

func (r *baseRepositoryImpl[T]) resolver() resolver {
	typ := reflect.TypeFor[T]()
	return newResolver(r.dc.DB().Table(typ), typ)
}

// mutate checks the preconditions shared by every ItemSet operation and
// hands each item to track.
func (r *baseRepositoryImpl[T]) mutate(items []*T, track func(entity any)) error {
	if r.closed {
		return ErrClosed
	}
	if r.dc.UnitOfWorkCount() == 0 {
		return uow.ErrInvalidUnitOfWork
	}
	for _, item := range items {
		if item == nil {
			return ErrNilEntity
		}
	}
	for _, item := range items {
		track(item)
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Add(items ...*T) error {
	return r.mutate(items, r.dc.Tracker().Add)
}

func (r *baseRepositoryImpl[T]) Remove(items ...*T) error {
	return r.mutate(items, r.dc.Tracker().Remove)
}

func (r *baseRepositoryImpl[T]) Attach(items ...*T) error {
	return r.mutate(items, r.dc.Tracker().Attach)
}

func (r *baseRepositoryImpl[T]) Update(items ...*T) error {
	return r.mutate(items, r.dc.Tracker().Update)
}

// Upsert schedules an insert that overwrites opts.Fields when a row with
// the same opts.ConflictKeys already exists.
func (r *baseRepositoryImpl[T]) Upsert(opts uow.UpsertOptions, items ...*T) error {
	return r.mutate(items, func(entity any) {
		r.dc.Tracker().Upsert(entity, opts)
	})
}

func (r *baseRepositoryImpl[T]) query(specs []specification.Specification[T], stages stage, dest *[]*T) (*bun.SelectQuery, error) {
	if r.closed {
		return nil, ErrClosed
	}
	p, err := newPlan(specs)
	if err != nil {
		return nil, err
	}
	return p.apply(r.dc.IDB().NewSelect().Model(dest), r.resolver(), stages)
}

// Get returns the single entity matching the include and filter
// specifications, nil when nothing matches and ErrMultipleResults when more
// than one row does. Sort and paging specifications are ignored.
func (r *baseRepositoryImpl[T]) Get(ctx context.Context, specs ...specification.Specification[T]) (*T, error) {
	var items []*T
	q, err := r.query(specs, stageInclude, &items)
	if err != nil {
		return nil, err
	}
	if err := q.Limit(2).Scan(ctx); err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	default:
		return nil, ErrMultipleResults
	}
}

func (r *baseRepositoryImpl[T]) GetElements(ctx context.Context, specs ...specification.Specification[T]) ([]*T, error) {
	items := make([]*T, 0)
	q, err := r.query(specs, stageAll, &items)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// GetElementCount counts the rows matching the filters only.
func (r *baseRepositoryImpl[T]) GetElementCount(ctx context.Context, specs ...specification.Specification[T]) (int, error) {
	var items []*T
	q, err := r.query(specs, 0, &items)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

func (r *baseRepositoryImpl[T]) Any(ctx context.Context, specs ...specification.Specification[T]) (bool, error) {
	var items []*T
	q, err := r.query(specs, 0, &items)
	if err != nil {
		return false, err
	}
	return q.Exists(ctx)
}

// Page counts the filtered rows and loads the requested page. Without a
// paging specification the first page of 10 is used.
func (r *baseRepositoryImpl[T]) Page(ctx context.Context, specs ...specification.Specification[T]) (*types.Pagination[T], error) {
	p, err := newPlan(specs)
	if err != nil {
		return nil, err
	}
	if len(p.pagings) == 0 {
		specs = append(specs[:len(specs):len(specs)], specification.DefaultPaging[T]())
		p.pagings = append(p.pagings, specification.DefaultPaging[T]())
	}
	if len(p.pagings) > 1 {
		return nil, ErrMultiplePaging
	}
	if len(p.sorts) == 0 {
		return nil, ErrPagingWithoutSort
	}

	page := p.pagings[0]
	pagination := types.NewDefaultPagination[T](page.PageIndex(), page.PageSize())
	total, err := r.GetElementCount(ctx, specs...)
	if err != nil || total == 0 {
		return pagination, err
	}
	items, err := r.GetElements(ctx, specs...)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

// Find looks through the entities tracked by the DataContext before asking
// the store. Deleted entities are skipped.
func (r *baseRepositoryImpl[T]) Find(ctx context.Context, filters ...*specification.Filter[T]) (*T, error) {
	for _, e := range r.dc.Tracker().Entries() {
		item, ok := e.Entity.(*T)
		if !ok || e.State == uow.Deleted {
			continue
		}
		match := true
		for _, f := range filters {
			if f == nil {
				return nil, specification.ErrNilSpecification
			}
			ok, err := f.IsSatisfiedBy(item)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			return item, nil
		}
	}

	specs := make([]specification.Specification[T], 0, len(filters))
	for _, f := range filters {
		if f == nil {
			return nil, specification.ErrNilSpecification
		}
		specs = append(specs, f)
	}
	return r.Get(ctx, specs...)
}

func (r *baseRepositoryImpl[T]) GetAsync(ctx context.Context, specs ...specification.Specification[T]) <-chan Result[*T] {
	ch := make(chan Result[*T], 1)
	go func() {
		defer close(ch)
		v, err := r.Get(ctx, specs...)
		ch <- Result[*T]{Value: v, Err: err}
	}()
	return ch
}

func (r *baseRepositoryImpl[T]) GetElementsAsync(ctx context.Context, specs ...specification.Specification[T]) <-chan Result[[]*T] {
	ch := make(chan Result[[]*T], 1)
	go func() {
		defer close(ch)
		v, err := r.GetElements(ctx, specs...)
		ch <- Result[[]*T]{Value: v, Err: err}
	}()
	return ch
}
