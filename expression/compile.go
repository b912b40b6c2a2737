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
	"cmp"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// CompiledPredicate evaluates a compiled lambda. Each argument must be a
// value of the matching parameter type or a pointer to one.
type CompiledPredicate func(args ...reflect.Value) (bool, error)

type evaluator func(args []reflect.Value) (reflect.Value, error)

var (
	boolType = reflect.TypeOf(false)
	timeType = reflect.TypeOf(time.Time{})
)

// Compile resolves every member against the parameter types and returns a
// closure tree evaluating the lambda body.
func Compile(l *Lambda) (CompiledPredicate, error) {
	if l == nil {
		return nil, ErrNilExpression
	}
	index := make(map[*Parameter]int, len(l.params))
	for i, p := range l.params {
		index[p] = i
	}
	eval, typ, err := compileNode(l.body, index)
	if err != nil {
		return nil, err
	}
	if typ != nil && typ.Kind() != reflect.Bool {
		return nil, fmt.Errorf("%w: body %s is %v", ErrNotBoolean, l.body, typ)
	}

	params := l.Params()
	return func(args ...reflect.Value) (bool, error) {
		if len(args) != len(params) {
			return false, fmt.Errorf("%w: got %d arguments, want %d", ErrParameterCount, len(args), len(params))
		}
		for i, a := range args {
			if !acceptsArgument(params[i].typ, a) {
				return false, fmt.Errorf("%w: argument %d is %v, want %v", ErrParameterType, i, a.Type(), params[i].typ)
			}
		}
		v, err := eval(args)
		if err != nil {
			return false, err
		}
		return asBool(v)
	}, nil
}

func acceptsArgument(want reflect.Type, v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	t := v.Type()
	return t == want || (t.Kind() == reflect.Pointer && t.Elem() == want)
}

func compileNode(n Node, index map[*Parameter]int) (evaluator, reflect.Type, error) {
	switch t := n.(type) {
	case *Parameter:
		i, ok := index[t]
		if !ok {
			return nil, nil, fmt.Errorf("%w: unbound parameter %s", ErrUnsupported, t.name)
		}
		return func(args []reflect.Value) (reflect.Value, error) { return args[i], nil }, t.typ, nil

	case *Member:
		return compileMember(t, index)

	case *Constant:
		v := reflect.ValueOf(t.value)
		var typ reflect.Type
		if v.IsValid() {
			typ = v.Type()
		}
		return func([]reflect.Value) (reflect.Value, error) { return v, nil }, typ, nil

	case *Binary:
		left, ltyp, err := compileNode(t.left, index)
		if err != nil {
			return nil, nil, err
		}
		right, rtyp, err := compileNode(t.right, index)
		if err != nil {
			return nil, nil, err
		}
		if t.op.IsLogical() {
			if !isBoolType(ltyp) || !isBoolType(rtyp) {
				return nil, nil, fmt.Errorf("%w: %s", ErrNotBoolean, t)
			}
			return compileLogical(t.op, left, right), boolType, nil
		}
		if !t.op.IsComparison() {
			return nil, nil, fmt.Errorf("%w: binary %s", ErrUnsupported, t.op)
		}
		op := t.op
		return func(args []reflect.Value) (reflect.Value, error) {
			l, err := left(args)
			if err != nil {
				return reflect.Value{}, err
			}
			r, err := right(args)
			if err != nil {
				return reflect.Value{}, err
			}
			ok, err := compare(op, l, r)
			return reflect.ValueOf(ok), err
		}, boolType, nil

	case *Unary:
		operand, typ, err := compileNode(t.operand, index)
		if err != nil {
			return nil, nil, err
		}
		if !isBoolType(typ) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotBoolean, t)
		}
		return func(args []reflect.Value) (reflect.Value, error) {
			v, err := operand(args)
			if err != nil {
				return reflect.Value{}, err
			}
			b, err := asBool(v)
			return reflect.ValueOf(!b), err
		}, boolType, nil

	case *Call:
		return compileCall(t, index)

	default:
		return nil, nil, fmt.Errorf("%w: node %T", ErrUnsupported, n)
	}
}

func compileMember(m *Member, index map[*Parameter]int) (evaluator, reflect.Type, error) {
	target, ttyp, err := compileNode(m.target, index)
	if err != nil {
		return nil, nil, err
	}
	st := ttyp
	for st != nil && st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st == nil || st.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("%w: %s is not a struct", ErrUnknownMember, m.target)
	}
	f, ok := st.FieldByName(m.name)
	if !ok || !f.IsExported() {
		return nil, nil, fmt.Errorf("%w: %v has no field %s", ErrUnknownMember, st, m.name)
	}
	fieldIndex := f.Index
	return func(args []reflect.Value) (reflect.Value, error) {
		v, err := target(args)
		if err != nil {
			return reflect.Value{}, err
		}
		v = indirect(v)
		if !v.IsValid() {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilReference, m.target)
		}
		fv, err := v.FieldByIndexErr(fieldIndex)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilReference, m)
		}
		return fv, nil
	}, f.Type, nil
}

func compileLogical(op Op, left, right evaluator) evaluator {
	return func(args []reflect.Value) (reflect.Value, error) {
		lv, err := left(args)
		if err != nil {
			return reflect.Value{}, err
		}
		l, err := asBool(lv)
		if err != nil {
			return reflect.Value{}, err
		}
		switch {
		case op == OpAndAlso && !l:
			return reflect.ValueOf(false), nil
		case op == OpOrElse && l:
			return reflect.ValueOf(true), nil
		}
		rv, err := right(args)
		if err != nil {
			return reflect.Value{}, err
		}
		r, err := asBool(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		if op == OpAnd || op == OpAndAlso {
			return reflect.ValueOf(l && r), nil
		}
		return reflect.ValueOf(l || r), nil
	}
}

func compileCall(c *Call, index map[*Parameter]int) (evaluator, reflect.Type, error) {
	target, ttyp, err := compileNode(c.target, index)
	if err != nil {
		return nil, nil, err
	}
	args := make([]evaluator, len(c.args))
	for i, a := range c.args {
		if args[i], _, err = compileNode(a, index); err != nil {
			return nil, nil, err
		}
	}

	if c.method == MethodIn {
		return func(in []reflect.Value) (reflect.Value, error) {
			v, err := target(in)
			if err != nil {
				return reflect.Value{}, err
			}
			for _, arg := range args {
				candidate, err := arg(in)
				if err != nil {
					return reflect.Value{}, err
				}
				eq, err := compare(OpEqual, v, candidate)
				if err != nil {
					return reflect.Value{}, err
				}
				if eq {
					return reflect.ValueOf(true), nil
				}
			}
			return reflect.ValueOf(false), nil
		}, boolType, nil
	}

	var fn func(s, sub string) bool
	switch c.method {
	case MethodContains:
		fn = strings.Contains
	case MethodHasPrefix:
		fn = strings.HasPrefix
	case MethodHasSuffix:
		fn = strings.HasSuffix
	default:
		return nil, nil, fmt.Errorf("%w: method %s", ErrUnsupported, c.method)
	}
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%w: %s takes one argument", ErrUnsupported, c.method)
	}
	if st := derefType(ttyp); st == nil || st.Kind() != reflect.String {
		return nil, nil, fmt.Errorf("%w: %s on %v", ErrUnsupported, c.method, ttyp)
	}
	return func(in []reflect.Value) (reflect.Value, error) {
		v, err := target(in)
		if err != nil {
			return reflect.Value{}, err
		}
		a, err := args[0](in)
		if err != nil {
			return reflect.Value{}, err
		}
		v, a = indirect(v), indirect(a)
		if !v.IsValid() || !a.IsValid() || a.Kind() != reflect.String {
			return reflect.ValueOf(false), nil
		}
		return reflect.ValueOf(fn(v.String(), a.String())), nil
	}, boolType, nil
}

// Compare applies a comparison operator to two plain values under the rules
// compiled predicates use: nil equals only nil and is never ordered.
func Compare(op Op, l, r any) (bool, error) {
	if !op.IsComparison() {
		return false, fmt.Errorf("%w: binary %s", ErrUnsupported, op)
	}
	return compare(op, reflect.ValueOf(l), reflect.ValueOf(r))
}

func compare(op Op, l, r reflect.Value) (bool, error) {
	l, r = indirect(l), indirect(r)
	if !l.IsValid() || !r.IsValid() {
		both := !l.IsValid() && !r.IsValid()
		switch op {
		case OpEqual:
			return both, nil
		case OpNotEqual:
			return !both, nil
		default:
			return false, nil
		}
	}

	if c, ok := order(l, r); ok {
		switch op {
		case OpEqual:
			return c == 0, nil
		case OpNotEqual:
			return c != 0, nil
		case OpLessThan:
			return c < 0, nil
		case OpLessOrEqual:
			return c <= 0, nil
		case OpGreaterThan:
			return c > 0, nil
		case OpGreaterOrEqual:
			return c >= 0, nil
		}
	}

	if op == OpEqual || op == OpNotEqual {
		eq := equal(l, r)
		if op == OpEqual {
			return eq, nil
		}
		return !eq, nil
	}
	return false, fmt.Errorf("%w: %s between %v and %v", ErrUnsupported, op, l.Type(), r.Type())
}

// order compares ordered kinds. ok is false when l and r are not mutually
// ordered.
func order(l, r reflect.Value) (c int, ok bool) {
	switch {
	case l.Type() == timeType && r.Type() == timeType:
		return l.Interface().(time.Time).Compare(r.Interface().(time.Time)), true
	case l.Kind() == reflect.String && r.Kind() == reflect.String:
		return strings.Compare(l.String(), r.String()), true
	case isSigned(l) && isSigned(r):
		return cmp.Compare(l.Int(), r.Int()), true
	case isUnsigned(l) && isUnsigned(r):
		return cmp.Compare(l.Uint(), r.Uint()), true
	case isSigned(l) && isUnsigned(r):
		if l.Int() < 0 {
			return -1, true
		}
		return cmp.Compare(uint64(l.Int()), r.Uint()), true
	case isUnsigned(l) && isSigned(r):
		if r.Int() < 0 {
			return 1, true
		}
		return cmp.Compare(l.Uint(), uint64(r.Int())), true
	case isNumeric(l) && isNumeric(r):
		return cmp.Compare(toFloat(l), toFloat(r)), true
	}
	return 0, false
}

func equal(l, r reflect.Value) bool {
	if l.Type() == r.Type() && l.Type().Comparable() {
		return l.Interface() == r.Interface()
	}
	if l.Kind() == r.Kind() && r.Type().ConvertibleTo(l.Type()) && l.Type().Comparable() {
		return l.Interface() == r.Convert(l.Type()).Interface()
	}
	return reflect.DeepEqual(l.Interface(), r.Interface())
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isBoolType(t reflect.Type) bool {
	t = derefType(t)
	return t == nil || t.Kind() == reflect.Bool
}

func asBool(v reflect.Value) (bool, error) {
	v = indirect(v)
	if !v.IsValid() || v.Kind() != reflect.Bool {
		return false, ErrNotBoolean
	}
	return v.Bool(), nil
}

func isSigned(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumeric(v reflect.Value) bool {
	return isSigned(v) || isUnsigned(v) || v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isSigned(v):
		return float64(v.Int())
	case isUnsigned(v):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
