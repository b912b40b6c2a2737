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
	"fmt"

	"github.com/tomoncle/bedrock/ioc"
	"github.com/tomoncle/bedrock/uow"
)

// ContextParameter is the construction parameter carrying the DataContext
// a resolved repository binds to.
const ContextParameter = "context"

// Register binds the default repository for T in c.
func Register[T any](c *ioc.Container) error {
	return RegisterFactory[T](c, func(dc *uow.DataContext, _ ioc.Parameters) (Repository[T], error) {
		return New[T](dc), nil
	})
}

// RegisterFactory binds a custom repository constructor for T. build gets
// the DataContext plus every parameter passed to Get.
func RegisterFactory[T any](c *ioc.Container, build func(dc *uow.DataContext, params ioc.Parameters) (Repository[T], error)) error {
	if build == nil {
		return ioc.ErrNilFactory
	}
	return ioc.BindFactory[Repository[T]](c, func(params ioc.Parameters) (Repository[T], error) {
		dc, ok := ioc.Param[*uow.DataContext](params, ContextParameter)
		if !ok || dc == nil {
			return nil, fmt.Errorf("%w: missing %q parameter", uow.ErrInvalidUnitOfWork, ContextParameter)
		}
		return build(dc, params)
	})
}

// Get resolves the repository for T from the unit of work's container,
// passing its DataContext as the "context" parameter. Types without a
// binding get the default repository.
func Get[T any](u *uow.UnitOfWork, params ...ioc.Parameter) (Repository[T], error) {
	if u == nil || u.Status() == uow.Disposed {
		return nil, uow.ErrInvalidUnitOfWork
	}
	dc := u.DataContext()
	c := dc.Container()
	if !ioc.Has[Repository[T]](c) {
		return New[T](dc), nil
	}
	all := make([]ioc.Parameter, 0, len(params)+1)
	all = append(all, params...)
	all = append(all, ioc.Named(ContextParameter, dc))
	return ioc.GetBinding[Repository[T]](c, all...)
}
