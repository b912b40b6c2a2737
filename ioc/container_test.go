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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock interface{ Now() int }

type fixedClock struct{ n int }

func (f fixedClock) Now() int { return f.n }

type greeter struct {
	clock clock
	name  string
}

func TestBindAndResolveSingleton(t *testing.T) {
	c := New()
	require.NoError(t, BindInstance[clock](c, fixedClock{n: 42}))

	calls := 0
	require.NoError(t, c.Bind(func(cl clock) *greeter {
		calls++
		return &greeter{clock: cl, name: "default"}
	}))

	g1, err := GetBinding[*greeter](c)
	require.NoError(t, err)
	g2, err := GetBinding[*greeter](c)
	require.NoError(t, err)

	assert.Same(t, g1, g2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 42, g1.clock.Now())
	assert.True(t, Has[*greeter](c))
}

func TestFactoryReceivesNamedParameters(t *testing.T) {
	c := New()
	require.NoError(t, BindFactory[*greeter](c, func(ps Parameters) (*greeter, error) {
		name, ok := Param[string](ps, "name")
		if !ok {
			return nil, errors.New("name required")
		}
		return &greeter{name: name}, nil
	}))

	g, err := GetBinding[*greeter](c, Named("name", "first"), Named("name", "second"))
	require.NoError(t, err)
	assert.Equal(t, "second", g.name)

	_, err = GetBinding[*greeter](c)
	assert.EqualError(t, err, "name required")
}

func TestMissingBinding(t *testing.T) {
	c := New()
	_, err := GetBinding[clock](c)
	assert.ErrorIs(t, err, ErrNoBinding)
	assert.False(t, Has[clock](c))

	assert.ErrorIs(t, BindFactory[clock](c, nil), ErrNilFactory)
	assert.ErrorIs(t, c.Bind(42), ErrBadConstructor)
}

func TestParametersLookup(t *testing.T) {
	ps := Parameters{Named("a", 1), Named("b", "x")}
	v, ok := ps.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = Param[int](ps, "b")
	assert.False(t, ok)
	_, ok = ps.Lookup("c")
	assert.False(t, ok)
}
