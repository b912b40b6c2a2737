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

package bedrock

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/repository"
	"github.com/tomoncle/bedrock/specification"
	"github.com/tomoncle/bedrock/types"
	"github.com/tomoncle/bedrock/uow"
)

type Service[T any] interface {
	// Get returns the single entity matching specs, or nil.
	Get(ctx context.Context, specs ...specification.Specification[T]) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns the entities matching specs, sorted and paged as requested.
	List(ctx context.Context, specs ...specification.Specification[T]) ([]*T, error)

	// Count returns the number of entities matching the filters in specs.
	Count(ctx context.Context, specs ...specification.Specification[T]) (int, error)

	// Exists reports whether any entity matches the filters in specs.
	Exists(ctx context.Context, specs ...specification.Specification[T]) (bool, error)

	// Page returns one page of the entities matching specs.
	Page(ctx context.Context, specs ...specification.Specification[T]) (*types.Pagination[T], error)

	// Query executes a raw query and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// Update writes every field of the given entities.
	Update(ctx context.Context, model ...*T) error

	// Delete removes the given entities.
	Delete(ctx context.Context, model ...*T) error

	// DeleteWhere removes every entity matching filter and returns how many
	// were removed.
	DeleteWhere(ctx context.Context, filter *specification.Filter[T]) (int, error)

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery
}

type baseServiceImpl[T any] struct {
	dc *uow.DataContext
}

// NewService returns a Service whose calls each run in their own auto-commit
// unit of work on dc, or join the unit of work already open on it. The
// audit info found in ctx is attached to the unit of work.
func NewService[T any](dc *uow.DataContext) Service[T] {
	return &baseServiceImpl[T]{dc: dc}
}

// run opens a unit of work, resolves the repository for T and hands both
// to fn. The repository is closed before the unit of work.
func (s *baseServiceImpl[T]) run(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error {
	audit, _ := types.AuditFromContext(ctx)
	return uow.Do(ctx, s.dc, uow.AutoCommit, audit, func(ctx context.Context, u *uow.UnitOfWork) error {
		repo, err := repository.Get[T](u)
		if err != nil {
			return err
		}
		defer repo.Close()
		return fn(ctx, repo)
	})
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, specs ...specification.Specification[T]) (item *T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		item, err = repo.Get(ctx, specs...)
		return err
	})
	return item, err
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.List(ctx)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, specs ...specification.Specification[T]) (items []*T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		items, err = repo.GetElements(ctx, specs...)
		return err
	})
	return items, err
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, specs ...specification.Specification[T]) (n int, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		n, err = repo.GetElementCount(ctx, specs...)
		return err
	})
	return n, err
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, specs ...specification.Specification[T]) (ok bool, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		ok, err = repo.Any(ctx, specs...)
		return err
	})
	return ok, err
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, specs ...specification.Specification[T]) (page *types.Pagination[T], err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		page, err = repo.Page(ctx, specs...)
		return err
	})
	return page, err
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, query string, args ...interface{}) (items []*T, err error) {
	items = make([]*T, 0)
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		return repo.Context().IDB().NewRaw(query, args...).Scan(ctx, &items)
	})
	return items, err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return s.run(ctx, func(_ context.Context, repo repository.Repository[T]) error {
		return repo.Add(model...)
	})
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	opts := uow.UpsertOptions{Fields: fields, ConflictKeys: duplicateKeys}
	return s.run(ctx, func(_ context.Context, repo repository.Repository[T]) error {
		return repo.Upsert(opts, model...)
	})
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model ...*T) error {
	return s.run(ctx, func(_ context.Context, repo repository.Repository[T]) error {
		return repo.Update(model...)
	})
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, model ...*T) error {
	return s.run(ctx, func(_ context.Context, repo repository.Repository[T]) error {
		return repo.Remove(model...)
	})
}

func (s *baseServiceImpl[T]) DeleteWhere(ctx context.Context, filter *specification.Filter[T]) (n int, err error) {
	if filter == nil {
		return 0, specification.ErrNilSpecification
	}
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		items, err := repo.GetElements(ctx, filter)
		if err != nil {
			return err
		}
		n = len(items)
		return repo.Remove(items...)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	return s.dc.IDB().NewSelect().Model((*T)(nil))
}
