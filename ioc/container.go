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

package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"
)

var (
	ErrNoBinding      = errors.New("ioc: no binding")
	ErrNilFactory     = errors.New("ioc: nil factory")
	ErrBadConstructor = errors.New("ioc: constructor must be a function")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Parameter is a named construction argument passed to a Factory.
type Parameter struct {
	Name  string
	Value any
}

func Named(name string, value any) Parameter {
	return Parameter{Name: name, Value: value}
}

type Parameters []Parameter

// Lookup returns the value of the last parameter called name.
func (ps Parameters) Lookup(name string) (any, bool) {
	for i := len(ps) - 1; i >= 0; i-- {
		if ps[i].Name == name {
			return ps[i].Value, true
		}
	}
	return nil, false
}

// Param returns the parameter called name converted to V.
func Param[V any](ps Parameters, name string) (V, bool) {
	var zero V
	raw, ok := ps.Lookup(name)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	return v, ok
}

// Factory builds a T from construction parameters. Factories run on every
// resolution, plain constructors bound through Bind are singletons.
type Factory[T any] func(params Parameters) (T, error)

// Container resolves bindings. Parameterless bindings live in a dig
// container; parameterised ones are Factory values keyed by type.
type Container struct {
	dig *dig.Container

	mu        sync.RWMutex
	provided  map[reflect.Type]struct{}
	factories map[reflect.Type]any
}

func New() *Container {
	return &Container{
		dig:       dig.New(),
		provided:  make(map[reflect.Type]struct{}),
		factories: make(map[reflect.Type]any),
	}
}

// Bind registers a dig constructor. Every non-error result type of the
// constructor becomes resolvable.
func (c *Container) Bind(constructor any, opts ...dig.ProvideOption) error {
	ct := reflect.TypeOf(constructor)
	if ct == nil || ct.Kind() != reflect.Func {
		return fmt.Errorf("%w: got %T", ErrBadConstructor, constructor)
	}
	if err := c.dig.Provide(constructor, opts...); err != nil {
		return fmt.Errorf("ioc: bind %v: %w", ct, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < ct.NumOut(); i++ {
		if out := ct.Out(i); out != errorType {
			c.provided[out] = struct{}{}
		}
	}
	return nil
}

// Invoke runs fn with its arguments resolved from the dig container.
func (c *Container) Invoke(fn any) error {
	return c.dig.Invoke(fn)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// BindInstance makes v the singleton binding of T.
func BindInstance[T any](c *Container, v T) error {
	return c.Bind(func() T { return v })
}

// BindFactory registers f for T. A later factory replaces an earlier one.
func BindFactory[T any](c *Container, f Factory[T]) error {
	if f == nil {
		return ErrNilFactory
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[typeOf[T]()] = f
	return nil
}

// Has reports whether T can be resolved.
func Has[T any](c *Container) bool {
	t := typeOf[T]()
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, fok := c.factories[t]
	_, pok := c.provided[t]
	return fok || pok
}

// GetBinding resolves T. A Factory bound for T wins and receives params;
// otherwise T comes from the dig container and params are ignored.
func GetBinding[T any](c *Container, params ...Parameter) (T, error) {
	var out T
	t := typeOf[T]()

	c.mu.RLock()
	f, hasFactory := c.factories[t]
	_, hasProvider := c.provided[t]
	c.mu.RUnlock()

	if hasFactory {
		return f.(Factory[T])(Parameters(params))
	}
	if !hasProvider {
		return out, fmt.Errorf("%w for %v", ErrNoBinding, t)
	}
	if err := c.dig.Invoke(func(v T) { out = v }); err != nil {
		return out, fmt.Errorf("ioc: resolve %v: %w", t, dig.RootCause(err))
	}
	return out, nil
}
