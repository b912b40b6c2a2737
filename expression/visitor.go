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

// Visitor rewrites parameter nodes. Every other node kind is traversed
// structurally by Rewrite.
type Visitor interface {
	VisitParameter(p *Parameter) Node
}

// Rewrite walks n and returns a tree where each parameter is replaced by
// v.VisitParameter. Unchanged subtrees are shared with the input, and a
// parent is only reallocated when one of its children changed.
func Rewrite(v Visitor, n Node) Node {
	switch t := n.(type) {
	case nil:
		return nil
	case *Parameter:
		return v.VisitParameter(t)
	case *Member:
		target := Rewrite(v, t.target)
		if target == t.target {
			return t
		}
		return &Member{target: target, name: t.name}
	case *Binary:
		left, right := Rewrite(v, t.left), Rewrite(v, t.right)
		if left == t.left && right == t.right {
			return t
		}
		return &Binary{op: t.op, left: left, right: right}
	case *Unary:
		operand := Rewrite(v, t.operand)
		if operand == t.operand {
			return t
		}
		return &Unary{op: t.op, operand: operand}
	case *Call:
		target := Rewrite(v, t.target)
		changed := target != t.target
		args := make([]Node, len(t.args))
		for i, a := range t.args {
			args[i] = Rewrite(v, a)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		return &Call{method: t.method, target: target, args: args}
	default:
		return n
	}
}

// ParameterRebinder replaces parameters found in its map.
type ParameterRebinder struct {
	m map[*Parameter]*Parameter
}

func NewParameterRebinder(m map[*Parameter]*Parameter) *ParameterRebinder {
	return &ParameterRebinder{m: m}
}

func (r *ParameterRebinder) VisitParameter(p *Parameter) Node {
	if replacement, ok := r.m[p]; ok {
		return replacement
	}
	return p
}

// ReplaceParameters rewrites n with every key of m replaced by its value.
func ReplaceParameters(m map[*Parameter]*Parameter, n Node) Node {
	return Rewrite(NewParameterRebinder(m), n)
}
