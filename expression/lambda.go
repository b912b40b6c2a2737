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
	"strings"
)

// Lambda is a body bound to an ordered parameter list.
type Lambda struct {
	params []*Parameter
	body   Node
}

// NewLambda binds body to params.
func NewLambda(body Node, params ...*Parameter) (*Lambda, error) {
	if body == nil {
		return nil, ErrNilExpression
	}
	for i, p := range params {
		if p == nil {
			return nil, fmt.Errorf("%w: parameter %d is nil", ErrNilExpression, i)
		}
	}
	ps := make([]*Parameter, len(params))
	copy(ps, params)
	return &Lambda{params: ps, body: body}, nil
}

// Predicate builds a unary lambda over T named "x".
func Predicate[T any](build func(x *Parameter) Node) *Lambda {
	p := Param[T]("x")
	return &Lambda{params: []*Parameter{p}, body: build(p)}
}

// Selector builds a unary lambda over T whose body is the dotted field path.
func Selector[T any](path string) *Lambda {
	p := Param[T]("x")
	return &Lambda{params: []*Parameter{p}, body: p.Field(path)}
}

// Params returns a copy of the parameter list.
func (l *Lambda) Params() []*Parameter {
	out := make([]*Parameter, len(l.params))
	copy(out, l.params)
	return out
}

func (l *Lambda) Body() Node { return l.body }

func (l *Lambda) String() string {
	names := make([]string, len(l.params))
	for i, p := range l.params {
		names[i] = p.name
	}
	head := strings.Join(names, ", ")
	if len(l.params) != 1 {
		head = "(" + head + ")"
	}
	return head + " => " + l.body.String()
}

// MemberPath returns the dotted field path of a selector lambda such as
// x => x.Author.Profile.
func MemberPath(l *Lambda) (string, error) {
	if l == nil {
		return "", ErrNilExpression
	}
	var parts []string
	n := l.body
	for {
		switch v := n.(type) {
		case *Member:
			parts = append(parts, v.name)
			n = v.target
			continue
		case *Parameter:
			if len(parts) == 0 {
				return "", ErrNotMemberPath
			}
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
			return strings.Join(parts, "."), nil
		default:
			return "", fmt.Errorf("%w: %s", ErrNotMemberPath, l.body)
		}
	}
}
