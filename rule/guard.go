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

package rule

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomoncle/bedrock/ioc"
	"github.com/tomoncle/bedrock/repository"
	"github.com/tomoncle/bedrock/uow"
)

// RepositoryParameter is the construction parameter carrying the repository
// a resolved rule works through.
const RepositoryParameter = "repository"

var ErrNoRule = errors.New("rule: no rule registered")

type guarded[T any] struct {
	repository.Repository[T]
	first Rule[T]
}

// Guard returns repo with every item passed to Add, Attach, Update, Upsert
// and Remove checked against the chain starting at first. A violation
// leaves the tracked set untouched.
func Guard[T any](repo repository.Repository[T], first Rule[T]) repository.Repository[T] {
	return &guarded[T]{Repository: repo, first: first}
}

func (g *guarded[T]) checked(items []*T) error {
	ctx := context.Background()
	for _, item := range items {
		if err := CheckAll(ctx, g.first, item); err != nil {
			return err
		}
	}
	return nil
}

func (g *guarded[T]) Add(items ...*T) error {
	if err := g.checked(items); err != nil {
		return err
	}
	return g.Repository.Add(items...)
}

func (g *guarded[T]) Attach(items ...*T) error {
	if err := g.checked(items); err != nil {
		return err
	}
	return g.Repository.Attach(items...)
}

func (g *guarded[T]) Update(items ...*T) error {
	if err := g.checked(items); err != nil {
		return err
	}
	return g.Repository.Update(items...)
}

func (g *guarded[T]) Upsert(opts uow.UpsertOptions, items ...*T) error {
	if err := g.checked(items); err != nil {
		return err
	}
	return g.Repository.Upsert(opts, items...)
}

func (g *guarded[T]) Remove(items ...*T) error {
	if err := g.checked(items); err != nil {
		return err
	}
	return g.Repository.Remove(items...)
}

// Close closes the rule chain and the repository.
func (g *guarded[T]) Close() error {
	return errors.Join(CloseAll(g.first), g.Repository.Close())
}

// Register binds the rule chain for T in c. build gets the repository the
// chain works through plus every parameter passed to Get.
func Register[T any](c *ioc.Container, build func(repo repository.Repository[T], params ioc.Parameters) (Rule[T], error)) error {
	if build == nil {
		return ioc.ErrNilFactory
	}
	return ioc.BindFactory[Rule[T]](c, func(params ioc.Parameters) (Rule[T], error) {
		repo, ok := ioc.Param[repository.Repository[T]](params, RepositoryParameter)
		if !ok || repo == nil {
			return nil, fmt.Errorf("%w: missing %q parameter", ioc.ErrNoBinding, RepositoryParameter)
		}
		return build(repo, params)
	})
}

// Get resolves the rule chain for T from the unit of work's container over
// a repository resolved the same way.
func Get[T any](u *uow.UnitOfWork, params ...ioc.Parameter) (Rule[T], error) {
	if u == nil || u.Status() == uow.Disposed {
		return nil, uow.ErrInvalidUnitOfWork
	}
	c := u.DataContext().Container()
	if !ioc.Has[Rule[T]](c) {
		return nil, fmt.Errorf("%w for %T", ErrNoRule, (*T)(nil))
	}
	repo, err := repository.Get[T](u, params...)
	if err != nil {
		return nil, err
	}
	all := make([]ioc.Parameter, 0, len(params)+1)
	all = append(all, params...)
	all = append(all, ioc.Named(RepositoryParameter, repo))
	first, err := ioc.GetBinding[Rule[T]](c, all...)
	if err != nil {
		return nil, errors.Join(err, repo.Close())
	}
	return first, nil
}

// GetGuarded resolves the repository for T guarded by its registered rule
// chain. Without a registered chain the plain repository is returned.
func GetGuarded[T any](u *uow.UnitOfWork, params ...ioc.Parameter) (repository.Repository[T], error) {
	first, err := Get[T](u, params...)
	if errors.Is(err, ErrNoRule) {
		return repository.Get[T](u, params...)
	}
	if err != nil {
		return nil, err
	}
	repo, err := repository.Get[T](u, params...)
	if err != nil {
		return nil, errors.Join(err, CloseAll(first))
	}
	return Guard(repo, first), nil
}
