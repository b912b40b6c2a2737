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
	"reflect"
	"strings"
)

// Node is an immutable element of an expression tree.
type Node interface {
	fmt.Stringer
	node()
}

// Op identifies a binary or unary operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpAnd
	OpAndAlso
	OpOr
	OpOrElse
	OpNot
)

var opSymbols = map[Op]string{
	OpEqual:          "==",
	OpNotEqual:       "!=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpAnd:            "&",
	OpAndAlso:        "&&",
	OpOr:             "|",
	OpOrElse:         "||",
	OpNot:            "!",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsLogical reports whether o combines two boolean operands.
func (o Op) IsLogical() bool {
	return o == OpAnd || o == OpAndAlso || o == OpOr || o == OpOrElse
}

// IsComparison reports whether o compares two values.
func (o Op) IsComparison() bool {
	return o >= OpEqual && o <= OpGreaterOrEqual
}

// Method identifies a call node.
type Method int

const (
	MethodContains Method = iota
	MethodHasPrefix
	MethodHasSuffix
	MethodIn
)

func (m Method) String() string {
	switch m {
	case MethodContains:
		return "Contains"
	case MethodHasPrefix:
		return "HasPrefix"
	case MethodHasSuffix:
		return "HasSuffix"
	case MethodIn:
		return "In"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Parameter is a typed lambda parameter. Identity is by pointer, so two
// parameters with the same name are still distinct.
type Parameter struct {
	name string
	typ  reflect.Type
}

// NewParameter returns a parameter of the given type.
func NewParameter(name string, typ reflect.Type) *Parameter {
	return &Parameter{name: name, typ: typ}
}

// Param returns a parameter typed by T.
func Param[T any](name string) *Parameter {
	return NewParameter(name, reflect.TypeOf((*T)(nil)).Elem())
}

func (p *Parameter) Name() string       { return p.name }
func (p *Parameter) Type() reflect.Type { return p.typ }
func (p *Parameter) String() string     { return p.name }
func (p *Parameter) node()              {}

// Field accesses a (possibly dotted) field path on the parameter.
func (p *Parameter) Field(path string) *Member {
	return fieldPath(p, path)
}

// Member is a field access on Target.
type Member struct {
	target Node
	name   string
}

func fieldPath(target Node, path string) *Member {
	var m *Member
	for _, part := range strings.Split(path, ".") {
		m = &Member{target: target, name: part}
		target = m
	}
	return m
}

func (m *Member) Target() Node { return m.target }
func (m *Member) Name() string { return m.name }
func (m *Member) node()        {}

func (m *Member) String() string {
	return m.target.String() + "." + m.name
}

// Field chains another field access.
func (m *Member) Field(path string) *Member {
	return fieldPath(m, path)
}

func (m *Member) Eq(v any) *Binary { return MakeBinary(OpEqual, m, asNode(v)) }
func (m *Member) Ne(v any) *Binary { return MakeBinary(OpNotEqual, m, asNode(v)) }
func (m *Member) Lt(v any) *Binary { return MakeBinary(OpLessThan, m, asNode(v)) }
func (m *Member) Le(v any) *Binary { return MakeBinary(OpLessOrEqual, m, asNode(v)) }
func (m *Member) Gt(v any) *Binary { return MakeBinary(OpGreaterThan, m, asNode(v)) }
func (m *Member) Ge(v any) *Binary { return MakeBinary(OpGreaterOrEqual, m, asNode(v)) }

func (m *Member) Contains(s string) *Call  { return MakeCall(MethodContains, m, Const(s)) }
func (m *Member) HasPrefix(s string) *Call { return MakeCall(MethodHasPrefix, m, Const(s)) }
func (m *Member) HasSuffix(s string) *Call { return MakeCall(MethodHasSuffix, m, Const(s)) }

// In matches when the member equals any of values.
func (m *Member) In(values ...any) *Call {
	args := make([]Node, len(values))
	for i, v := range values {
		args[i] = asNode(v)
	}
	return MakeCall(MethodIn, m, args...)
}

// Constant is a literal value.
type Constant struct {
	value any
}

func Const(v any) *Constant { return &Constant{value: v} }

func (c *Constant) Value() any { return c.value }
func (c *Constant) node()      {}

func (c *Constant) String() string {
	switch v := c.value.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Binary applies Op to Left and Right.
type Binary struct {
	op          Op
	left, right Node
}

func MakeBinary(op Op, left, right Node) *Binary {
	return &Binary{op: op, left: left, right: right}
}

func (b *Binary) Op() Op      { return b.op }
func (b *Binary) Left() Node  { return b.left }
func (b *Binary) Right() Node { return b.right }
func (b *Binary) node()       {}

func (b *Binary) String() string {
	return "(" + b.left.String() + " " + b.op.String() + " " + b.right.String() + ")"
}

// Unary negates its operand. OpNot is the only unary operator.
type Unary struct {
	op      Op
	operand Node
}

func MakeNot(operand Node) *Unary {
	return &Unary{op: OpNot, operand: operand}
}

func (u *Unary) Op() Op        { return u.op }
func (u *Unary) Operand() Node { return u.operand }
func (u *Unary) node()         {}

func (u *Unary) String() string {
	return "!" + u.operand.String()
}

// Call invokes Method on Target with Args.
type Call struct {
	method Method
	target Node
	args   []Node
}

func MakeCall(method Method, target Node, args ...Node) *Call {
	return &Call{method: method, target: target, args: args}
}

func (c *Call) Method() Method { return c.method }
func (c *Call) Target() Node   { return c.target }
func (c *Call) node()          {}

// Args returns a copy of the call arguments.
func (c *Call) Args() []Node {
	out := make([]Node, len(c.args))
	copy(out, c.args)
	return out
}

func (c *Call) String() string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = a.String()
	}
	return c.target.String() + "." + c.method.String() + "(" + strings.Join(args, ", ") + ")"
}

// AllOf joins nodes with short-circuit AND. It returns nil for no nodes.
func AllOf(nodes ...Node) Node {
	return fold(OpAndAlso, nodes)
}

// AnyOf joins nodes with short-circuit OR. It returns nil for no nodes.
func AnyOf(nodes ...Node) Node {
	return fold(OpOrElse, nodes)
}

func fold(op Op, nodes []Node) Node {
	if len(nodes) == 0 {
		return nil
	}
	out := nodes[0]
	for _, n := range nodes[1:] {
		out = MakeBinary(op, out, n)
	}
	return out
}

func asNode(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	return Const(v)
}
